package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/domain/user"
)

// WidgetToken records an issued widget JWT (by hash) so embeds can be
// revoked before their expiry.
type WidgetToken struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID    uuid.UUID  `gorm:"type:uuid;index;not null;column:owner_id" json:"owner_id"`
	Owner      *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:OwnerID;references:ID" json:"owner,omitempty"`
	BotID      uuid.UUID  `gorm:"type:uuid;index;not null;column:bot_id" json:"bot_id"`
	TokenHash  string     `gorm:"uniqueIndex;not null;column:token_hash" json:"-"`
	IsActive   bool       `gorm:"not null;default:true;column:is_active" json:"is_active"`
	ExpiresAt  time.Time  `gorm:"not null;column:expires_at" json:"expires_at"`
	LastUsedAt *time.Time `gorm:"column:last_used_at" json:"last_used_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (WidgetToken) TableName() string { return "widget_token" }

func (t *WidgetToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
