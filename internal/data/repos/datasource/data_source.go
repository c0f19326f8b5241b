package datasource

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

type DataSourceRepo interface {
	Create(dbc dbctx.Context, row *types.DataSource) (*types.DataSource, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DataSource, error)
	GetByReference(dbc dbctx.Context, workspaceID uuid.UUID, reference string) (*types.DataSource, error)
	ListByWorkspace(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.DataSource, error)
	ListByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DataSource, error)
	ListUnsynced(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.DataSource, error)
	ListSynced(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.DataSource, error)
	SetSynced(dbc dbctx.Context, id uuid.UUID, at time.Time) error
	SetUnsynced(dbc dbctx.Context, id uuid.UUID) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type dataSourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDataSourceRepo(db *gorm.DB, log *logger.Logger) DataSourceRepo {
	return &dataSourceRepo{db: db, log: log.With("repo", "DataSourceRepo")}
}

func (r *dataSourceRepo) Create(dbc dbctx.Context, row *types.DataSource) (*types.DataSource, error) {
	if row == nil {
		return nil, fmt.Errorf("missing data source")
	}
	if row.WorkspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	if row.Reference == "" {
		return nil, fmt.Errorf("missing reference")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *dataSourceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DataSource, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing data_source_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.DataSource
	if err := txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *dataSourceRepo) GetByReference(dbc dbctx.Context, workspaceID uuid.UUID, reference string) (*types.DataSource, error) {
	if workspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	if reference == "" {
		return nil, fmt.Errorf("missing reference")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.DataSource
	if err := txx.WithContext(dbc.Ctx).
		Where("workspace_id = ? AND reference = ?", workspaceID, reference).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *dataSourceRepo) ListByWorkspace(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.DataSource, error) {
	if workspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.DataSource
	if err := txx.WithContext(dbc.Ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *dataSourceRepo) ListByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DataSource, error) {
	if len(ids) == 0 {
		return []*types.DataSource{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.DataSource
	if err := txx.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *dataSourceRepo) ListUnsynced(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.DataSource, error) {
	return r.listBySynced(dbc, workspaceID, false)
}

func (r *dataSourceRepo) ListSynced(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.DataSource, error) {
	return r.listBySynced(dbc, workspaceID, true)
}

func (r *dataSourceRepo) listBySynced(dbc dbctx.Context, workspaceID uuid.UUID, synced bool) ([]*types.DataSource, error) {
	if workspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.DataSource
	if err := txx.WithContext(dbc.Ctx).
		Where("workspace_id = ? AND is_synced = ?", workspaceID, synced).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *dataSourceRepo) SetSynced(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing data_source_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.DataSource{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_synced":      true,
			"last_synced_at": at,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *dataSourceRepo) SetUnsynced(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing data_source_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.DataSource{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_synced":  false,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *dataSourceRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing data_source_id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.DataSource{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *dataSourceRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing data_source_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&types.DataSource{}).Error
}
