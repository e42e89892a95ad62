package conversation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateConversation(ctx context.Context, conv *Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// GetOwnedConversation loads a conversation only when it belongs to userID.
// A miss for any reason reads as gorm.ErrRecordNotFound so ownership and
// absence are indistinguishable to callers.
func (r *Repo) GetOwnedConversation(ctx context.Context, id string, userID uint64) (*Conversation, error) {
	var conv Conversation
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns the owner's conversations most recently active
// first. The updated_at DESC ordering is the recency contract of the UI.
func (r *Repo) ListConversations(ctx context.Context, userID uint64) ([]Conversation, error) {
	var convs []Conversation
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *Repo) DeleteOwnedConversation(ctx context.Context, id string, userID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&Conversation{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		// messages go with the conversation
		if err := r.db.WithContext(ctx).
			Where("conversation_id = ?", id).
			Delete(&Message{}).Error; err != nil {
			return res.RowsAffected, err
		}
	}
	return res.RowsAffected, nil
}

// InsertMessage appends and bumps the parent's updated_at in one pass.
func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).
			Where("id = ?", m.ConversationID).
			Update("updated_at", time.Now()).Error
	})
}

// ListMessages returns a conversation's messages in append order.
func (r *Repo) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// CountUserMessages counts user-role messages, used for one-shot title derivation.
func (r *Repo) CountUserMessages(ctx context.Context, conversationID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ? AND role = ?", conversationID, RoleUser).
		Count(&cnt).Error
	return cnt, err
}

func (r *Repo) UpdateTitle(ctx context.Context, conversationID, title string) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", conversationID).
		Update("title", title).Error
}

func (r *Repo) GetMessageByID(ctx context.Context, conversationID, messageID string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND id = ?", conversationID, messageID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMessageContext persists segments computed after the fact so they are
// cached per context item and not re-derived on every render.
func (r *Repo) UpdateMessageContext(ctx context.Context, messageID string, items ContextItems) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", messageID).
		Update("context", items).Error
}

// AskJob CRUD, mirrored on the job table the async flow uses.

func (r *Repo) CreateJob(ctx context.Context, job *AskJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*AskJob, error) {
	var j AskJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&AskJob{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, assistantMsgID string) error {
	return r.db.WithContext(ctx).Model(&AskJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": assistantMsgID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&AskJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*AskJob, error) {
	var job AskJob
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job; if (user_id, idempotency_key)
// already exists it returns the existing one instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *AskJob) (*AskJob, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
