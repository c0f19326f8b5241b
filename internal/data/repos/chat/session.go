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

type SessionRepo interface {
	Create(dbc dbctx.Context, row *types.ChatSession) (*types.ChatSession, error)
	GetByToken(dbc dbctx.Context, sessionToken string) (*types.ChatSession, error)
	CountActiveByBot(dbc dbctx.Context, botID uuid.UUID) (int64, error)
	Touch(dbc dbctx.Context, id uuid.UUID) error
	Deactivate(dbc dbctx.Context, id uuid.UUID) error
	DeactivateIdleBefore(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: log.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, row *types.ChatSession) (*types.ChatSession, error) {
	if row == nil {
		return nil, fmt.Errorf("missing session")
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

func (r *sessionRepo) GetByToken(dbc dbctx.Context, sessionToken string) (*types.ChatSession, error) {
	if sessionToken == "" {
		return nil, fmt.Errorf("missing session_token")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.ChatSession
	if err := txx.WithContext(dbc.Ctx).
		Where("session_token = ?", sessionToken).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) CountActiveByBot(dbc dbctx.Context, botID uuid.UUID) (int64, error) {
	if botID == uuid.Nil {
		return 0, fmt.Errorf("missing bot_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.ChatSession{}).
		Where("bot_id = ? AND is_active = ?", botID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Touch bumps the message counter and activity timestamp in one statement.
func (r *sessionRepo) Touch(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	now := time.Now().UTC()
	return txx.WithContext(dbc.Ctx).
		Model(&types.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"messages_count":   gorm.Expr("messages_count + 1"),
			"last_activity_at": now,
			"updated_at":       now,
		}).Error
}

func (r *sessionRepo) Deactivate(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *sessionRepo) DeactivateIdleBefore(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&types.ChatSession{}).
		Where("is_active = ? AND last_activity_at < ?", true, cutoff).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
