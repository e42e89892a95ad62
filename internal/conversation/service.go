package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ragbot/ragchat/internal/common"
)

// ErrNotFound covers both a missing conversation and one owned by another
// user; callers cannot tell the two apart.
var ErrNotFound = errors.New("conversation not found")

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

// Create seeds a conversation with the assistant welcome message and the
// default title.
func (s *Service) Create(ctx context.Context, userID uint64) (*Conversation, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	conv := &Conversation{
		ID:     id,
		UserID: userID,
		Title:  DefaultTitle,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}

	welcome := &Message{
		ID:             "welcome-" + id,
		ConversationID: id,
		Role:           RoleAssistant,
		Content:        WelcomeMessage,
		Timestamp:      time.Now(),
	}
	if err := s.repo.InsertMessage(ctx, welcome); err != nil {
		return nil, err
	}

	conv.Messages = []Message{*welcome}
	return conv, nil
}

// Append adds a message to an owned conversation and bumps updated_at.
// The first user message also derives the title, once, while it is still
// the default.
func (s *Service) Append(ctx context.Context, conversationID string, userID uint64, msg *Message) error {
	conv, err := s.repo.GetOwnedConversation(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.ConversationID = conversationID

	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return err
	}

	if msg.Role == RoleUser && conv.Title == DefaultTitle {
		cnt, err := s.repo.CountUserMessages(ctx, conversationID)
		if err != nil {
			return err
		}
		if cnt == 1 {
			if err := s.repo.UpdateTitle(ctx, conversationID, DeriveTitle(msg.Content)); err != nil {
				return err
			}
		}
	}
	return nil
}

// List returns the owner's conversations, most recently active first.
func (s *Service) List(ctx context.Context, userID uint64) ([]Conversation, error) {
	return s.repo.ListConversations(ctx, userID)
}

// Get loads an owned conversation with its messages in append order.
func (s *Service) Get(ctx context.Context, conversationID string, userID uint64) (*Conversation, error) {
	conv, err := s.repo.GetOwnedConversation(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	msgs, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	conv.Messages = msgs
	return conv, nil
}

func (s *Service) Delete(ctx context.Context, conversationID string, userID uint64) error {
	rows, err := s.repo.DeleteOwnedConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMessage loads one message of an owned conversation.
func (s *Service) GetMessage(ctx context.Context, conversationID string, userID uint64, messageID string) (*Message, error) {
	if _, err := s.repo.GetOwnedConversation(ctx, conversationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m, err := s.repo.GetMessageByID(ctx, conversationID, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// CacheMessageContext stores recomputed context items (with their cached
// relevant segments) back onto the message row.
func (s *Service) CacheMessageContext(ctx context.Context, messageID string, items ContextItems) error {
	return s.repo.UpdateMessageContext(ctx, messageID, items)
}

func (s *Service) CreateJobOrGetExisting(ctx context.Context, job *AskJob) (*AskJob, bool, error) {
	return s.repo.CreateJobOrGetExisting(ctx, job)
}

// GetJob enforces ownership the same way conversations do: somebody else's
// job reads as absent.
func (s *Service) GetJob(ctx context.Context, jobID string, userID uint64) (*AskJob, error) {
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if j.UserID != userID {
		return nil, ErrNotFound
	}
	return j, nil
}
