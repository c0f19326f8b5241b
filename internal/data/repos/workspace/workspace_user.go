package workspace

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

type WorkspaceUserRepo interface {
	Create(dbc dbctx.Context, row *types.WorkspaceUser) (*types.WorkspaceUser, error)
	GetMembership(dbc dbctx.Context, workspaceID, userID uuid.UUID) (*types.WorkspaceUser, error)
	IsMember(dbc dbctx.Context, workspaceID, userID uuid.UUID) (bool, error)
	ListMembers(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.WorkspaceUser, error)
}

type workspaceUserRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkspaceUserRepo(db *gorm.DB, log *logger.Logger) WorkspaceUserRepo {
	return &workspaceUserRepo{db: db, log: log.With("repo", "WorkspaceUserRepo")}
}

func (r *workspaceUserRepo) Create(dbc dbctx.Context, row *types.WorkspaceUser) (*types.WorkspaceUser, error) {
	if row == nil {
		return nil, fmt.Errorf("missing workspace member")
	}
	if row.WorkspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	if row.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
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

func (r *workspaceUserRepo) GetMembership(dbc dbctx.Context, workspaceID, userID uuid.UUID) (*types.WorkspaceUser, error) {
	if workspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.WorkspaceUser
	if err := txx.WithContext(dbc.Ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *workspaceUserRepo) IsMember(dbc dbctx.Context, workspaceID, userID uuid.UUID) (bool, error) {
	_, err := r.GetMembership(dbc, workspaceID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *workspaceUserRepo) ListMembers(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.WorkspaceUser, error) {
	if workspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.WorkspaceUser
	if err := txx.WithContext(dbc.Ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
