package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session tracks one widget visitor's conversation window with a bot.
type Session struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BotID        uuid.UUID `gorm:"type:uuid;not null;index" json:"bot_id"`
	Bot          *Bot      `gorm:"constraint:OnDelete:CASCADE;foreignKey:BotID;references:ID" json:"bot,omitempty"`
	SessionToken string    `gorm:"uniqueIndex;not null;column:session_token" json:"session_token"`
	IsActive     bool      `gorm:"not null;default:true;column:is_active" json:"is_active"`

	MessagesCount  int       `gorm:"not null;default:0;column:messages_count" json:"messages_count"`
	LastActivityAt time.Time `gorm:"not null;column:last_activity_at" json:"last_activity_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Session) TableName() string { return "chat_session" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.LastActivityAt.IsZero() {
		s.LastActivityAt = time.Now().UTC()
	}
	return nil
}
