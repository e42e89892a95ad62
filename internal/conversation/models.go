package conversation

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

const (
	DefaultTitle = "Nouvelle conversation"

	WelcomeMessage = "Bonjour ! Je suis votre assistant RAG. Je peux répondre à vos questions basées sur vos documents. Commencez par télécharger des fichiers ou posez-moi directement une question."

	RoleUser      = "user"
	RoleAssistant = "assistant"

	titleMaxRunes = 30
)

type Conversation struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	UserID    uint64    `gorm:"index;not null" json:"-"`
	Title     string    `gorm:"type:varchar(100);not null" json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Messages []Message `gorm:"-" json:"messages,omitempty"`
}

func (Conversation) TableName() string { return "conversations" }

// ContextItem is a retrieved passage attached to an assistant reply for
// transparency. Score is advisory, it only drives display ranking.
type ContextItem struct {
	Content         string `json:"content"`
	Score           int    `json:"score"`
	RelevantSegment string `json:"relevantSegment,omitempty"`
}

// ContextItems serializes as a JSON text column.
type ContextItems []ContextItem

func (c ContextItems) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	return json.Marshal(c)
}

func (c *ContextItems) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return errors.New("conversation: unsupported context column type")
	}
}

// Message rows are append-only: once inserted they are never edited.
// Seq (auto-increment) fixes the insertion order.
type Message struct {
	Seq            uint64       `gorm:"primaryKey;autoIncrement" json:"-"`
	ID             string       `gorm:"type:varchar(36);uniqueIndex;not null" json:"id"`
	ConversationID string       `gorm:"type:varchar(26);index;not null" json:"-"`
	Role           string       `gorm:"type:varchar(16);not null" json:"role"`
	Content        string       `gorm:"type:text;not null" json:"content"`
	Question       string       `gorm:"type:text" json:"question,omitempty"`
	Context        ContextItems `gorm:"type:text" json:"context,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
}

func (Message) TableName() string { return "conversation_messages" }

// DeriveTitle truncates the first user message to 30 runes plus an ellipsis.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}
