package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username           string     `gorm:"uniqueIndex;not null;column:username" json:"username"`
	Email              string     `gorm:"column:email" json:"email"`
	Password           string     `gorm:"not null;column:password" json:"-"`
	IsActive           bool       `gorm:"not null;default:true;column:is_active" json:"is_active"`
	IsAdmin            bool       `gorm:"not null;default:false;column:is_admin" json:"is_admin"`
	CurrentWorkspaceID *uuid.UUID `gorm:"type:uuid;column:current_workspace_id" json:"current_workspace_id,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "user" }

// IDs are generated app-side so the model works on both sqlite and postgres.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
