package datasource

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/domain/workspace"
)

const ProviderClickUp = "clickup"

// Credentials is the JSON document stored on an ExternalConnection.
type Credentials struct {
	APIToken string `json:"api_token"`
}

// ExternalConnection links a workspace to a ticketing provider account.
type ExternalConnection struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_connection_workspace_provider" json:"workspace_id"`
	Workspace   *workspace.Workspace `gorm:"constraint:OnDelete:CASCADE;foreignKey:WorkspaceID;references:ID" json:"workspace,omitempty"`
	Provider    string               `gorm:"not null;uniqueIndex:idx_connection_workspace_provider;column:provider" json:"provider"`
	Credentials datatypes.JSON       `gorm:"column:credentials" json:"-"`
	IsActive    bool                 `gorm:"not null;default:true;column:is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ExternalConnection) TableName() string { return "external_connection" }

func (c *ExternalConnection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// DecodeCredentials parses the stored credentials document.
func (c *ExternalConnection) DecodeCredentials() (Credentials, error) {
	var creds Credentials
	if len(c.Credentials) == 0 {
		return creds, nil
	}
	err := json.Unmarshal(c.Credentials, &creds)
	return creds, err
}

// EncodeCredentials replaces the stored credentials document.
func (c *ExternalConnection) EncodeCredentials(creds Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	c.Credentials = datatypes.JSON(raw)
	return nil
}
