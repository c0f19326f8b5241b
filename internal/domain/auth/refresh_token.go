package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/domain/user"
)

// RefreshToken persists the SHA-256 hash of an opaque refresh secret. The
// secret itself is returned to the client once and never stored.
type RefreshToken struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	User       *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	TokenHash  string     `gorm:"uniqueIndex;not null;column:token_hash" json:"-"`
	IsActive   bool       `gorm:"not null;default:true;column:is_active" json:"is_active"`
	ExpiresAt  time.Time  `gorm:"not null;column:expires_at" json:"expires_at"`
	LastUsedAt *time.Time `gorm:"column:last_used_at" json:"last_used_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (RefreshToken) TableName() string { return "refresh_token" }

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
