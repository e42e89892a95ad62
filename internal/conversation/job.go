package conversation

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// AskJob tracks an asynchronous question: the HTTP handler enqueues it and a
// worker runs the same ask flow the synchronous endpoint uses.
type AskJob struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID         uint64 `gorm:"not null;index;index:uniq_user_idempo,unique,priority:1"`
	ConversationID string `gorm:"size:26;index;not null"`

	Question string `gorm:"type:text;not null"`

	// unique per (user_id, idempotency_key): two users may reuse a key
	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_user_idempo,unique,priority:2" json:"idempotency_key"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	ResultMessageID *string `gorm:"type:varchar(36);index"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AskJob) TableName() string { return "ask_jobs" }
