package workspace

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/domain/user"
)

// Workspace is the tenancy boundary. Every document, conversation, and
// retrieval query is scoped to exactly one workspace.
type Workspace struct {
	ID      uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name    string     `gorm:"not null;column:name" json:"name"`
	OwnerID uuid.UUID  `gorm:"type:uuid;index;not null;column:owner_id" json:"owner_id"`
	Owner   *user.User `gorm:"foreignKey:OwnerID;references:ID" json:"owner,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Workspace) TableName() string { return "workspace" }

func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
