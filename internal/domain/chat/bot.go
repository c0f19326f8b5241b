package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/domain/user"
	"github.com/datafirst-hq/aidly-backend/internal/domain/workspace"
)

// Bot is an embeddable widget identity bound to one workspace. Widget chat
// always runs retrieval under the bot's workspace, never the visitor's.
type Bot struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string               `gorm:"not null;column:name" json:"name"`
	WorkspaceID uuid.UUID            `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Workspace   *workspace.Workspace `gorm:"foreignKey:WorkspaceID;references:ID" json:"workspace,omitempty"`
	OwnerID     uuid.UUID            `gorm:"type:uuid;not null;index;column:owner_id" json:"owner_id"`
	Owner       *user.User           `gorm:"foreignKey:OwnerID;references:ID" json:"owner,omitempty"`
	IsActive    bool                 `gorm:"not null;default:true;column:is_active" json:"is_active"`

	WelcomeMessage string `gorm:"column:welcome_message" json:"welcome_message,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Bot) TableName() string { return "bot" }

func (b *Bot) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
