package datasource

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/domain/user"
	"github.com/datafirst-hq/aidly-backend/internal/domain/workspace"
)

const (
	SourceTypeFile         = "file"
	SourceTypeURL          = "url"
	SourceTypeExternalTask = "external_task"
)

// DataSource is one ingestable knowledge item. Reference is the stable
// handle used for vector bookkeeping: a filename for files and external
// tasks, the full URL for web pages.
type DataSource struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_source_workspace_ref" json:"workspace_id"`
	Workspace   *workspace.Workspace `gorm:"constraint:OnDelete:CASCADE;foreignKey:WorkspaceID;references:ID" json:"workspace,omitempty"`
	OwnerID     uuid.UUID            `gorm:"type:uuid;not null;index;column:owner_id" json:"owner_id"`
	Owner       *user.User           `gorm:"foreignKey:OwnerID;references:ID" json:"owner,omitempty"`

	SourceType string  `gorm:"not null;index;column:source_type" json:"source_type"`
	Reference  string  `gorm:"not null;uniqueIndex:idx_source_workspace_ref;column:reference" json:"reference"`
	Path       string  `gorm:"column:path" json:"path,omitempty"`
	SizeMB     float64 `gorm:"column:size_mb" json:"size_mb"`
	Category   string  `gorm:"column:category" json:"category,omitempty"`
	Tags       string  `gorm:"column:tags" json:"tags,omitempty"`

	IsSynced     bool       `gorm:"not null;default:false;column:is_synced" json:"is_synced"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DataSource) TableName() string { return "data_source" }

func (d *DataSource) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
