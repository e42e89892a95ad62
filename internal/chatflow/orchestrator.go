// Package chatflow ties user input to conversation persistence, the RAG
// backend call and the persisted reply. Backend failures become assistant
// messages recorded in history, never silent drops.
package chatflow

import (
	"context"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ragbot/ragchat/internal/conversation"
	"github.com/ragbot/ragchat/internal/rag"
	"github.com/ragbot/ragchat/internal/relevance"
)

// State is the per-ask lifecycle. Every ask ends back at Idle; Success and
// Failed only describe how it got there.
type State string

const (
	StateIdle    State = "idle"
	StateSending State = "sending"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

const (
	fallbackAnswer = "Je n'ai pas pu trouver une réponse."

	genericFailureMessage = "Désolé, une erreur s'est produite lors du traitement de votre demande."

	// distinct, actionable variant for the backend's "nothing uploaded yet"
	noDocumentsMessage = "Aucun document n'a encore été téléchargé. Veuillez d'abord téléverser un document avant de poser votre question."
)

type Orchestrator struct {
	convs   *conversation.Service
	backend rag.Backend
}

func New(convs *conversation.Service, backend rag.Backend) *Orchestrator {
	return &Orchestrator{convs: convs, backend: backend}
}

// AskResult reports what an ask did. UserMessage is always persisted once
// the conversation resolved; AssistantMessage is whatever reply (real or
// synthetic error) ended up in history.
type AskResult struct {
	ConversationID   string
	CreatedConv      bool
	UserMessage      *conversation.Message
	AssistantMessage *conversation.Message
	State            State
	NoDocuments      bool
}

// Ask runs one question end to end. With an empty conversationID a new
// conversation is created first; its id is only returned once both the
// creation and the first append succeeded, so the caller navigates to a
// conversation that actually holds the message.
func (o *Orchestrator) Ask(ctx context.Context, userID uint64, conversationID, question string) (*AskResult, error) {
	res := &AskResult{State: StateSending}

	if conversationID == "" {
		conv, err := o.convs.Create(ctx, userID)
		if err != nil {
			return nil, err
		}
		conversationID = conv.ID
		res.CreatedConv = true
	}
	res.ConversationID = conversationID

	userMsg := &conversation.Message{
		Role:    conversation.RoleUser,
		Content: question,
	}
	if err := o.convs.Append(ctx, conversationID, userID, userMsg); err != nil {
		return nil, err
	}
	res.UserMessage = userMsg

	answer, askErr := o.backend.Ask(ctx, question, strconv.FormatUint(userID, 10))
	if askErr != nil {
		return o.recordFailure(ctx, userID, res, question, askErr)
	}

	content := answer.Response
	if content == "" {
		content = fallbackAnswer
	}

	items := relevance.Normalize(answer.Context, answer.Blob)
	for i := range items {
		if items[i].RelevantSegment == "" {
			items[i].RelevantSegment = relevance.ExtractRelevantSegment(items[i].Content, question)
		}
	}

	assistantMsg := &conversation.Message{
		Role:     conversation.RoleAssistant,
		Content:  content,
		Question: question,
		Context:  items,
	}
	if err := o.convs.Append(ctx, conversationID, userID, assistantMsg); err != nil {
		// user message is already in history; that partial state is valid
		return nil, err
	}

	res.AssistantMessage = assistantMsg
	res.State = StateSuccess
	return res, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, userID uint64, res *AskResult, question string, askErr error) (*AskResult, error) {
	content := genericFailureMessage
	if errors.Is(askErr, rag.ErrNoDocuments) {
		content = noDocumentsMessage
		res.NoDocuments = true
	}

	logrus.WithError(askErr).WithField("conversation_id", res.ConversationID).Warn("backend ask failed")

	errMsg := &conversation.Message{
		Role:     conversation.RoleAssistant,
		Content:  content,
		Question: question,
	}
	if err := o.convs.Append(ctx, res.ConversationID, userID, errMsg); err != nil {
		return nil, err
	}

	res.AssistantMessage = errMsg
	res.State = StateFailed
	return res, nil
}

// RenderContext builds the display view for an assistant message's context
// and caches freshly extracted segments back onto the row.
func (o *Orchestrator) RenderContext(ctx context.Context, userID uint64, conversationID, messageID string, disclosure *relevance.Disclosure) (*relevance.View, error) {
	msg, err := o.convs.GetMessage(ctx, conversationID, userID, messageID)
	if err != nil {
		return nil, err
	}

	view, enriched := relevance.BuildView(msg.ID, msg.Question, msg.Context)
	if disclosure != nil {
		disclosure.Apply(&view)
	}

	if segmentsAdded(msg.Context, enriched) {
		if err := o.convs.CacheMessageContext(ctx, msg.ID, enriched); err != nil {
			logrus.WithError(err).Warn("segment cache write failed")
		}
	}
	return &view, nil
}

// segmentsAdded reports whether BuildView filled in segments that the
// stored items were missing, i.e. whether the cache write is worth doing.
func segmentsAdded(before, after conversation.ContextItems) bool {
	if len(after) == 0 {
		return false
	}
	for _, it := range before {
		if it.RelevantSegment == "" {
			return true
		}
	}
	return false
}
