package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

type WidgetTokenRepo interface {
	Create(dbc dbctx.Context, row *types.WidgetToken) (*types.WidgetToken, error)
	GetByHash(dbc dbctx.Context, tokenHash string) (*types.WidgetToken, error)
	ListActiveByBot(dbc dbctx.Context, botID uuid.UUID) ([]*types.WidgetToken, error)
	DeactivateByID(dbc dbctx.Context, id uuid.UUID) error
	DeactivateAllForBot(dbc dbctx.Context, botID uuid.UUID) (int64, error)
	TouchLastUsed(dbc dbctx.Context, id uuid.UUID) error
	DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error)
}

type widgetTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWidgetTokenRepo(db *gorm.DB, log *logger.Logger) WidgetTokenRepo {
	return &widgetTokenRepo{db: db, log: log.With("repo", "WidgetTokenRepo")}
}

func (r *widgetTokenRepo) Create(dbc dbctx.Context, row *types.WidgetToken) (*types.WidgetToken, error) {
	if row == nil {
		return nil, fmt.Errorf("missing widget token")
	}
	if row.BotID == uuid.Nil {
		return nil, fmt.Errorf("missing bot_id")
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

func (r *widgetTokenRepo) GetByHash(dbc dbctx.Context, tokenHash string) (*types.WidgetToken, error) {
	if tokenHash == "" {
		return nil, fmt.Errorf("missing token_hash")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.WidgetToken
	if err := txx.WithContext(dbc.Ctx).
		Where("token_hash = ?", tokenHash).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *widgetTokenRepo) ListActiveByBot(dbc dbctx.Context, botID uuid.UUID) ([]*types.WidgetToken, error) {
	if botID == uuid.Nil {
		return nil, fmt.Errorf("missing bot_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.WidgetToken
	if err := txx.WithContext(dbc.Ctx).
		Where("bot_id = ? AND is_active = ? AND expires_at > ?", botID, true, time.Now().UTC()).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *widgetTokenRepo) DeactivateByID(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing token_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.WidgetToken{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *widgetTokenRepo) DeactivateAllForBot(dbc dbctx.Context, botID uuid.UUID) (int64, error) {
	if botID == uuid.Nil {
		return 0, fmt.Errorf("missing bot_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&types.WidgetToken{}).
		Where("bot_id = ? AND is_active = ?", botID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *widgetTokenRepo) TouchLastUsed(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing token_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	now := time.Now().UTC()
	return txx.WithContext(dbc.Ctx).
		Model(&types.WidgetToken{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_used_at": now,
			"updated_at":   now,
		}).Error
}

func (r *widgetTokenRepo) DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Where("expires_at <= ?", now).
		Delete(&types.WidgetToken{})
	return res.RowsAffected, res.Error
}
