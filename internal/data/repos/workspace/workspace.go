package workspace

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

type WorkspaceRepo interface {
	Create(dbc dbctx.Context, row *types.Workspace) (*types.Workspace, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Workspace, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Workspace, error)
}

type workspaceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkspaceRepo(db *gorm.DB, log *logger.Logger) WorkspaceRepo {
	return &workspaceRepo{db: db, log: log.With("repo", "WorkspaceRepo")}
}

func (r *workspaceRepo) Create(dbc dbctx.Context, row *types.Workspace) (*types.Workspace, error) {
	if row == nil {
		return nil, fmt.Errorf("missing workspace")
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

func (r *workspaceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Workspace, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.Workspace
	if err := txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByUser returns every workspace the user is a member of, oldest first so
// the first workspace a user ever joined stays their default.
func (r *workspaceRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Workspace, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Workspace
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Workspace{}).
		Joins("JOIN workspace_user ON workspace_user.workspace_id = workspace.id").
		Where("workspace_user.user_id = ?", userID).
		Order("workspace.created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
