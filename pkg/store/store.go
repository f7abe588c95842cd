// Package store is the persistence layer: users, conversations and messages
// in a single file-backed sqlite database, created on first run.
package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/botgpt/botgpt/pkg/models"
)

// Store wraps the database handle. It is constructed once at startup and
// passed to everything that needs persistence.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database file at path and migrates the schema.
func Open(path string) (*Store, error) {
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed opening database %q", path)
	}
	if err := models.MigrationFunc(conn); err != nil {
		return nil, errors.Wrap(err, "failed migrating database")
	}
	return &Store{db: conn}, nil
}

// New wraps an existing connection (used by tests)
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks the database connection
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// ##### USERS

// FindUserByEmail returns the user with the given email
func (s *Store) FindUserByEmail(email string) (models.User, error) {
	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, errors.Wrap(err, "failed getting user")
	}
	return user, nil
}

// FindUserByID returns the user with the given ID
func (s *Store) FindUserByID(id uuid.UUID) (models.User, error) {
	var user models.User
	err := s.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, errors.Wrap(err, "failed getting user")
	}
	return user, nil
}

// CreateUser creates a new user with the given email
func (s *Store) CreateUser(email string) (models.User, error) {
	user := models.User{Email: email}
	if err := s.db.Create(&user).Error; err != nil {
		return models.User{}, errors.Wrap(err, "failed creating user")
	}
	return user, nil
}

// EnsureUser returns the user with the given email, creating it if missing.
// Safe to call repeatedly; the init endpoint relies on the idempotency.
func (s *Store) EnsureUser(email string) (models.User, error) {
	user, err := s.FindUserByEmail(email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return models.User{}, err
	}
	return s.CreateUser(email)
}

// ListUsers returns all users in the system
func (s *Store) ListUsers() ([]models.User, error) {
	users := make([]models.User, 0)
	if err := s.db.Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed listing users")
	}
	return users, nil
}

// DeleteUser removes a user together with all of its conversations and
// their messages. The cascade runs in one transaction so a failure leaves
// no orphan rows (sqlite does not enforce foreign keys by default).
func (s *Store) DeleteUser(id uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return errors.Wrap(err, "failed getting user")
		}
		ownedConversations := tx.Model(&models.Conversation{}).
			Select("id").
			Where("user_id = ?", id)
		if err := tx.Where("conversation_id IN (?)", ownedConversations).
			Delete(&models.Message{}).Error; err != nil {
			return errors.Wrap(err, "failed deleting user messages")
		}
		if err := tx.Where("user_id = ?", id).
			Delete(&models.Conversation{}).Error; err != nil {
			return errors.Wrap(err, "failed deleting user conversations")
		}
		if err := tx.Delete(&user).Error; err != nil {
			return errors.Wrap(err, "failed deleting user")
		}
		return nil
	})
}

// ##### CONVERSATIONS

// CreateConversation creates a new conversation for the given user
func (s *Store) CreateConversation(userID uuid.UUID, mode models.ConversationMode) (models.Conversation, error) {
	conversation := models.Conversation{
		UserID: userID,
		Mode:   mode,
	}
	if err := s.db.Create(&conversation).Error; err != nil {
		return models.Conversation{}, errors.Wrap(err, "failed creating conversation")
	}
	return conversation, nil
}

// GetConversation returns a conversation by ID without its messages
func (s *Store) GetConversation(id uuid.UUID) (models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.Where("id = ?", id).First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation, ErrConversationNotFound
		}
		return conversation, errors.Wrap(err, "failed getting conversation")
	}
	return conversation, nil
}

// GetConversationWithMessages returns a conversation with its messages in
// chronological order
func (s *Store) GetConversationWithMessages(id uuid.UUID) (models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).Where("id = ?", id).First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation, ErrConversationNotFound
		}
		return conversation, errors.Wrap(err, "failed getting conversation")
	}
	if conversation.Messages == nil {
		conversation.Messages = make([]models.Message, 0)
	}
	return conversation, nil
}

// ListConversations returns all conversations for a user, most recently
// updated first, with messages embedded in chronological order
func (s *Store) ListConversations(userID uuid.UUID) ([]models.Conversation, error) {
	conversations := make([]models.Conversation, 0)
	err := s.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed listing conversations")
	}
	for i := range conversations {
		if conversations[i].Messages == nil {
			conversations[i].Messages = make([]models.Message, 0)
		}
	}
	return conversations, nil
}

// UpdateConversationTitle sets the title and refreshes updated_at
func (s *Store) UpdateConversationTitle(id uuid.UUID, title string) error {
	err := s.db.Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("title", title).Error
	return errors.Wrap(err, "failed updating conversation title")
}

// DeleteConversation removes a conversation and all of its messages
func (s *Store) DeleteConversation(id uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var conversation models.Conversation
		if err := tx.Where("id = ?", id).First(&conversation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConversationNotFound
			}
			return errors.Wrap(err, "failed getting conversation")
		}
		if err := tx.Where("conversation_id = ?", id).
			Delete(&models.Message{}).Error; err != nil {
			return errors.Wrap(err, "failed deleting messages")
		}
		if err := tx.Delete(&conversation).Error; err != nil {
			return errors.Wrap(err, "failed deleting conversation")
		}
		return nil
	})
}

// ##### MESSAGES

// CreateMessage appends a message to a conversation and refreshes the
// conversation's updated_at so it stays >= the newest message timestamp.
func (s *Store) CreateMessage(conversationID uuid.UUID, role models.MessageRole, content string, tokensUsed int) (models.Message, error) {
	message := models.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		TokensUsed:     tokensUsed,
	}
	if err := s.db.Create(&message).Error; err != nil {
		return models.Message{}, errors.Wrap(err, "failed creating message")
	}
	err := s.db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now()).Error
	if err != nil {
		return models.Message{}, errors.Wrap(err, "failed touching conversation")
	}
	return message, nil
}

// Messages returns the full history of a conversation in chronological order
func (s *Store) Messages(conversationID uuid.UUID) ([]models.Message, error) {
	return s.RecentMessages(conversationID, 0)
}

// RecentMessages returns the last limit messages of a conversation in
// chronological order. A limit <= 0 returns the full history.
func (s *Store) RecentMessages(conversationID uuid.UUID, limit int) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	query := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, errors.Wrap(err, "failed listing messages")
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountMessages returns the number of messages in a conversation
func (s *Store) CountMessages(conversationID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed counting messages")
	}
	return count, nil
}
