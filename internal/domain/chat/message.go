package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/domain/user"
)

const (
	FeedbackUp   = "up"
	FeedbackDown = "down"
)

// Message is one completed question/answer exchange. Both halves of the
// turn live on a single row so latency and feedback attach to the pair.
// UserID is nil for widget traffic, where the asker is anonymous.
type Message struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Conversation   *Conversation `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConversationID;references:ID" json:"conversation,omitempty"`
	UserID         *uuid.UUID    `gorm:"type:uuid;index" json:"user_id,omitempty"`
	User           *user.User    `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`

	Question string `gorm:"column:question;type:text;not null" json:"question"`
	Answer   string `gorm:"column:answer;type:text;not null" json:"answer"`
	Model    string `gorm:"column:model" json:"model,omitempty"`

	// LatencyMS is wall time from request arrival to the end of generation.
	LatencyMS int64 `gorm:"column:latency_ms" json:"latency_ms"`

	// Feedback is empty until a reader rates the answer "up" or "down".
	Feedback string `gorm:"column:feedback" json:"feedback,omitempty"`

	Timestamp time.Time `gorm:"not null;index;column:timestamp" json:"timestamp"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Message) TableName() string { return "message" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}
