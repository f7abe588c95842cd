package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRole defines the possible roles for a message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message represents a single message in a conversation. Messages are never
// updated in place; they only disappear through a conversation cascade.
type Message struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID   `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Role           MessageRole `gorm:"size:20;not null;check:role IN ('user','assistant')" json:"role"`
	Content        string      `gorm:"type:text;not null" json:"content"`
	TokensUsed     int         `gorm:"not null;default:0" json:"tokens_used"`
	CreatedAt      time.Time   `json:"timestamp"`
}

// TableName specifies the table name for Message model
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate hook to ensure ID is set
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
