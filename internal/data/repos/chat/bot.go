package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

type BotRepo interface {
	Create(dbc dbctx.Context, row *types.Bot) (*types.Bot, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Bot, error)
	ListByWorkspace(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.Bot, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type botRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBotRepo(db *gorm.DB, log *logger.Logger) BotRepo {
	return &botRepo{db: db, log: log.With("repo", "BotRepo")}
}

func (r *botRepo) Create(dbc dbctx.Context, row *types.Bot) (*types.Bot, error) {
	if row == nil {
		return nil, fmt.Errorf("missing bot")
	}
	if row.WorkspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
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

func (r *botRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Bot, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing bot_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.Bot
	if err := txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *botRepo) ListByWorkspace(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.Bot, error) {
	if workspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Bot
	if err := txx.WithContext(dbc.Ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *botRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing bot_id")
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
		Model(&types.Bot{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *botRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing bot_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&types.Bot{}).Error
}
