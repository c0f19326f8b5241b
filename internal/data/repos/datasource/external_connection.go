package datasource

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

type ExternalConnectionRepo interface {
	Upsert(dbc dbctx.Context, row *types.ExternalConnection) (*types.ExternalConnection, error)
	GetByWorkspaceProvider(dbc dbctx.Context, workspaceID uuid.UUID, provider string) (*types.ExternalConnection, error)
	ListByWorkspace(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.ExternalConnection, error)
	Deactivate(dbc dbctx.Context, workspaceID uuid.UUID, provider string) error
}

type externalConnectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExternalConnectionRepo(db *gorm.DB, log *logger.Logger) ExternalConnectionRepo {
	return &externalConnectionRepo{db: db, log: log.With("repo", "ExternalConnectionRepo")}
}

// Upsert stores the connection, replacing credentials when the workspace
// already has one for the provider.
func (r *externalConnectionRepo) Upsert(dbc dbctx.Context, row *types.ExternalConnection) (*types.ExternalConnection, error) {
	if row == nil {
		return nil, fmt.Errorf("missing connection")
	}
	if row.WorkspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	if row.Provider == "" {
		return nil, fmt.Errorf("missing provider")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "workspace_id"}, {Name: "provider"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"credentials": row.Credentials,
				"is_active":   true,
				"updated_at":  time.Now().UTC(),
			}),
		}).
		Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *externalConnectionRepo) GetByWorkspaceProvider(dbc dbctx.Context, workspaceID uuid.UUID, provider string) (*types.ExternalConnection, error) {
	if workspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	if provider == "" {
		return nil, fmt.Errorf("missing provider")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.ExternalConnection
	if err := txx.WithContext(dbc.Ctx).
		Where("workspace_id = ? AND provider = ?", workspaceID, provider).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *externalConnectionRepo) ListByWorkspace(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.ExternalConnection, error) {
	if workspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.ExternalConnection
	if err := txx.WithContext(dbc.Ctx).
		Where("workspace_id = ?", workspaceID).
		Order("provider ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *externalConnectionRepo) Deactivate(dbc dbctx.Context, workspaceID uuid.UUID, provider string) error {
	if workspaceID == uuid.Nil {
		return fmt.Errorf("missing workspace_id")
	}
	if provider == "" {
		return fmt.Errorf("missing provider")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.ExternalConnection{}).
		Where("workspace_id = ? AND provider = ?", workspaceID, provider).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		}).Error
}
