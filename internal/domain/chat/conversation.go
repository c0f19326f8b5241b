package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/domain/user"
	"github.com/datafirst-hq/aidly-backend/internal/domain/workspace"
)

type Conversation struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID            `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *user.User           `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	WorkspaceID uuid.UUID            `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Workspace   *workspace.Workspace `gorm:"foreignKey:WorkspaceID;references:ID" json:"workspace,omitempty"`

	Title string `gorm:"column:title;not null" json:"title"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversation" }

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
