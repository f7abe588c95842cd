package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConversationMode tags how a conversation is driven
type ConversationMode string

const (
	// ModeOpen is free-form chat against the base model
	ModeOpen ConversationMode = "open"
	// ModeRAG marks retrieval-augmented chat. The tag is persisted but the
	// pipeline does not branch on it yet.
	ModeRAG ConversationMode = "rag"
)

// Valid reports whether the mode is one of the known tags
func (m ConversationMode) Valid() bool {
	return m == ModeOpen || m == ModeRAG
}

// DefaultConversationTitle is the placeholder title until the first turn completes
const DefaultConversationTitle = "New Conversation"

// Conversation represents a chat session
type Conversation struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Mode      ConversationMode `gorm:"size:20;not null;default:'open'" json:"mode"`
	Title     string           `gorm:"size:255;not null;default:'New Conversation'" json:"title"`
	Metadata  datatypes.JSON   `gorm:"default:'{}'" json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`

	// Associations
	User     User      `gorm:"foreignKey:UserID" json:"-"`
	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages"`
}

// TableName specifies the table name for Conversation model
func (Conversation) TableName() string {
	return "conversations"
}

// BeforeCreate hook to ensure ID and defaults are set (sqlite does not
// apply the column defaults on explicit zero-value inserts)
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Mode == "" {
		c.Mode = ModeOpen
	}
	if c.Title == "" {
		c.Title = DefaultConversationTitle
	}
	return nil
}
