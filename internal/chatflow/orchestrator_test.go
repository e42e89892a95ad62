package chatflow

import (
	"context"
	"errors"
	"io"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ragbot/ragchat/internal/conversation"
	"github.com/ragbot/ragchat/internal/rag"
)

// fakeBackend scripts the RAG backend and records what reached it.
type fakeBackend struct {
	answer    *rag.Answer
	askErr    error
	asked     []string
	listed    int
	existing  []rag.FileInfo
	listErr   error
	uploaded  [][]string
	uploadErr error
	statuses  []rag.FileStatus
	deleted   []string
}

func (f *fakeBackend) Ask(ctx context.Context, question, userID string) (*rag.Answer, error) {
	f.asked = append(f.asked, question)
	if f.askErr != nil {
		return nil, f.askErr
	}
	return f.answer, nil
}

func (f *fakeBackend) UploadFiles(ctx context.Context, userID string, files []rag.File) ([]rag.FileStatus, error) {
	names := make([]string, 0, len(files))
	for _, fl := range files {
		_, _ = io.ReadAll(fl.Content)
		names = append(names, fl.Name)
	}
	f.uploaded = append(f.uploaded, names)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.statuses, nil
}

func (f *fakeBackend) ListFiles(ctx context.Context, userID string) ([]rag.FileInfo, error) {
	f.listed++
	return f.existing, f.listErr
}

func (f *fakeBackend) DeleteFile(ctx context.Context, userID, filename string) error {
	f.deleted = append(f.deleted, filename)
	return nil
}

func newTestFlow(t *testing.T, backend rag.Backend) (*Orchestrator, *conversation.Service) {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&conversation.Conversation{}, &conversation.Message{}, &conversation.AskJob{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	convs := conversation.NewService(conversation.NewRepo(db))
	return New(convs, backend), convs
}

func TestAsk_NewConversation(t *testing.T) {
	backend := &fakeBackend{answer: &rag.Answer{
		Response: "Le contrat expire en mars.",
		Context: []rag.ContextItem{
			{Content: "Le contrat expire en mars. Il est renouvelable.", Score: 92},
			{Content: "Autre passage.", Score: 40},
		},
	}}
	flow, convs := newTestFlow(t, backend)
	ctx := context.Background()

	res, err := flow.Ask(ctx, 1, "", "Quand expire le contrat")
	require.NoError(t, err)

	assert.True(t, res.CreatedConv)
	assert.NotEmpty(t, res.ConversationID)
	assert.Equal(t, StateSuccess, res.State)
	assert.False(t, res.NoDocuments)
	require.NotNil(t, res.AssistantMessage)
	assert.Equal(t, "Le contrat expire en mars.", res.AssistantMessage.Content)
	assert.Equal(t, "Quand expire le contrat", res.AssistantMessage.Question)
	require.Len(t, res.AssistantMessage.Context, 2)
	assert.NotEmpty(t, res.AssistantMessage.Context[0].RelevantSegment)

	// welcome + user + assistant, in that order, and a derived title
	conv, err := convs.Get(ctx, res.ConversationID, 1)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, conversation.RoleAssistant, conv.Messages[0].Role)
	assert.Equal(t, "Quand expire le contrat", conv.Messages[1].Content)
	assert.Equal(t, conversation.RoleAssistant, conv.Messages[2].Role)
	assert.Equal(t, "Quand expire le contrat", conv.Title)
}

func TestAsk_ExistingConversation(t *testing.T) {
	backend := &fakeBackend{answer: &rag.Answer{Response: "ok"}}
	flow, convs := newTestFlow(t, backend)
	ctx := context.Background()

	conv, err := convs.Create(ctx, 2)
	require.NoError(t, err)

	res, err := flow.Ask(ctx, 2, conv.ID, "question")
	require.NoError(t, err)
	assert.False(t, res.CreatedConv)
	assert.Equal(t, conv.ID, res.ConversationID)
}

func TestAsk_UnknownConversation(t *testing.T) {
	flow, _ := newTestFlow(t, &fakeBackend{answer: &rag.Answer{Response: "ok"}})

	_, err := flow.Ask(context.Background(), 3, "01MISSINGAAAAAAAAAAAAAAAA0", "question")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestAsk_EmptyResponseGetsFallback(t *testing.T) {
	flow, _ := newTestFlow(t, &fakeBackend{answer: &rag.Answer{Response: ""}})

	res, err := flow.Ask(context.Background(), 4, "", "question")
	require.NoError(t, err)
	assert.Equal(t, fallbackAnswer, res.AssistantMessage.Content)
}

func TestAsk_BlobContext(t *testing.T) {
	flow, _ := newTestFlow(t, &fakeBackend{answer: &rag.Answer{
		Response: "réponse",
		Blob:     "un bloc de contexte opaque renvoyé par un ancien backend",
	}})

	res, err := flow.Ask(context.Background(), 5, "", "question")
	require.NoError(t, err)
	require.Len(t, res.AssistantMessage.Context, 1)
	assert.Equal(t, 100, res.AssistantMessage.Context[0].Score)
	assert.NotEmpty(t, res.AssistantMessage.Context[0].RelevantSegment)
}

func TestAsk_BackendFailureRecordedInHistory(t *testing.T) {
	backend := &fakeBackend{askErr: errors.New("connection refused")}
	flow, convs := newTestFlow(t, backend)
	ctx := context.Background()

	res, err := flow.Ask(ctx, 6, "", "question perdue")
	require.NoError(t, err, "a backend failure is not an ask failure")

	assert.Equal(t, StateFailed, res.State)
	assert.False(t, res.NoDocuments)
	require.NotNil(t, res.AssistantMessage)
	assert.Equal(t, genericFailureMessage, res.AssistantMessage.Content)

	// the failure lives in history like any other reply
	conv, err := convs.Get(ctx, res.ConversationID, 6)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, genericFailureMessage, conv.Messages[2].Content)
}

func TestAsk_NoDocumentsGetsDistinctMessage(t *testing.T) {
	flow, _ := newTestFlow(t, &fakeBackend{askErr: rag.ErrNoDocuments})

	res, err := flow.Ask(context.Background(), 7, "", "question")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.True(t, res.NoDocuments)
	assert.Equal(t, noDocumentsMessage, res.AssistantMessage.Content)
	assert.NotEqual(t, genericFailureMessage, res.AssistantMessage.Content)
}

func TestRenderContext_CachesSegments(t *testing.T) {
	backend := &fakeBackend{answer: &rag.Answer{Response: "ok"}}
	flow, convs := newTestFlow(t, backend)
	ctx := context.Background()

	conv, err := convs.Create(ctx, 8)
	require.NoError(t, err)

	// stored without segments, as an older row would be
	msg := &conversation.Message{
		Role:     conversation.RoleAssistant,
		Content:  "réponse",
		Question: "le chat noir",
		Context:  conversation.ContextItems{{Content: "Le chat noir dort. Le chien veille.", Score: 88}},
	}
	require.NoError(t, convs.Append(ctx, conv.ID, 8, msg))

	view, err := flow.RenderContext(ctx, 8, conv.ID, msg.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, view.Primary)
	assert.Equal(t, "Le chat noir dort.", view.Primary.Segment)

	// the extracted segment was written back to the row
	stored, err := convs.GetMessage(ctx, conv.ID, 8, msg.ID)
	require.NoError(t, err)
	require.Len(t, stored.Context, 1)
	assert.Equal(t, "Le chat noir dort.", stored.Context[0].RelevantSegment)
}
