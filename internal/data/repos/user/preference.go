package user

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

type UserPreferenceRepo interface {
	Get(dbc dbctx.Context, userID uuid.UUID, key string) (*types.UserPreference, error)
	Upsert(dbc dbctx.Context, userID uuid.UUID, key, value string) (*types.UserPreference, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserPreference, error)
}

type userPreferenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserPreferenceRepo(db *gorm.DB, log *logger.Logger) UserPreferenceRepo {
	return &userPreferenceRepo{db: db, log: log.With("repo", "UserPreferenceRepo")}
}

func (r *userPreferenceRepo) Get(dbc dbctx.Context, userID uuid.UUID, key string) (*types.UserPreference, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if key == "" {
		return nil, fmt.Errorf("missing preference key")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.UserPreference
	if err := txx.WithContext(dbc.Ctx).
		Where("user_id = ? AND key = ?", userID, key).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userPreferenceRepo) Upsert(dbc dbctx.Context, userID uuid.UUID, key, value string) (*types.UserPreference, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if key == "" {
		return nil, fmt.Errorf("missing preference key")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	row := &types.UserPreference{UserID: userID, Key: key, Value: value}
	if err := txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"value": value, "updated_at": time.Now().UTC()}),
		}).
		Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *userPreferenceRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserPreference, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.UserPreference
	if err := txx.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("key ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
