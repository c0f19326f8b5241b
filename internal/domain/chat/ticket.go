package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/domain/user"
	"github.com/datafirst-hq/aidly-backend/internal/domain/workspace"
)

const (
	TicketStatusOpen   = "open"
	TicketStatusClosed = "closed"
)

// Ticket is a support escalation raised from a conversation the assistant
// could not resolve.
type Ticket struct {
	ID             uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID            `gorm:"type:uuid;not null;index" json:"user_id"`
	User           *user.User           `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	WorkspaceID    uuid.UUID            `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Workspace      *workspace.Workspace `gorm:"foreignKey:WorkspaceID;references:ID" json:"workspace,omitempty"`
	ConversationID *uuid.UUID           `gorm:"type:uuid;index" json:"conversation_id,omitempty"`

	Title       string `gorm:"not null;column:title" json:"title"`
	Description string `gorm:"type:text;column:description" json:"description"`
	Priority    string `gorm:"not null;default:'normal';column:priority" json:"priority"`
	Category    string `gorm:"column:category" json:"category"`
	Status      string `gorm:"not null;default:'open';column:status" json:"status"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Ticket) TableName() string { return "ticket" }

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
