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

type RefreshTokenRepo interface {
	Create(dbc dbctx.Context, row *types.RefreshToken) (*types.RefreshToken, error)
	GetByHash(dbc dbctx.Context, tokenHash string) (*types.RefreshToken, error)
	ListActiveByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.RefreshToken, error)
	DeactivateByID(dbc dbctx.Context, id uuid.UUID) error
	DeactivateAllForUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
	TouchLastUsed(dbc dbctx.Context, id uuid.UUID) error
	DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error)
	DeleteInactiveBefore(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type refreshTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRefreshTokenRepo(db *gorm.DB, log *logger.Logger) RefreshTokenRepo {
	return &refreshTokenRepo{db: db, log: log.With("repo", "RefreshTokenRepo")}
}

func (r *refreshTokenRepo) Create(dbc dbctx.Context, row *types.RefreshToken) (*types.RefreshToken, error) {
	if row == nil {
		return nil, fmt.Errorf("missing refresh token")
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

func (r *refreshTokenRepo) GetByHash(dbc dbctx.Context, tokenHash string) (*types.RefreshToken, error) {
	if tokenHash == "" {
		return nil, fmt.Errorf("missing token_hash")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.RefreshToken
	if err := txx.WithContext(dbc.Ctx).
		Where("token_hash = ?", tokenHash).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// ListActiveByUser returns unexpired active tokens, newest first, so callers
// can enforce the per-user session cap by retiring the tail.
func (r *refreshTokenRepo) ListActiveByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.RefreshToken, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.RefreshToken
	if err := txx.WithContext(dbc.Ctx).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, time.Now().UTC()).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *refreshTokenRepo) DeactivateByID(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing token_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.RefreshToken{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *refreshTokenRepo) DeactivateAllForUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&types.RefreshToken{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *refreshTokenRepo) TouchLastUsed(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing token_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	now := time.Now().UTC()
	return txx.WithContext(dbc.Ctx).
		Model(&types.RefreshToken{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_used_at": now,
			"updated_at":   now,
		}).Error
}

func (r *refreshTokenRepo) DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Where("expires_at <= ?", now).
		Delete(&types.RefreshToken{})
	return res.RowsAffected, res.Error
}

// DeleteInactiveBefore removes revoked tokens whose last activity predates the
// cutoff. Tokens that were never used fall back to their creation time.
func (r *refreshTokenRepo) DeleteInactiveBefore(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Where("is_active = ? AND COALESCE(last_used_at, created_at) < ?", false, cutoff).
		Delete(&types.RefreshToken{})
	return res.RowsAffected, res.Error
}
