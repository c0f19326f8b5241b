package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Preference stores a single key/value setting for a user, e.g. the
// "language" key that controls the answer language of the assistant.
type Preference struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_pref_key" json:"user_id"`
	User   *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Key    string    `gorm:"not null;uniqueIndex:idx_user_pref_key;column:key" json:"key"`
	Value  string    `gorm:"not null;column:value" json:"value"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Preference) TableName() string { return "user_preference" }

func (p *Preference) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

const (
	// PreferenceKeyLanguage holds an ISO 639-1 code, default "en".
	PreferenceKeyLanguage = "language"
)
