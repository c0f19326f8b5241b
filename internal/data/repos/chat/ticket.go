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

type TicketRepo interface {
	Create(dbc dbctx.Context, row *types.Ticket) (*types.Ticket, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Ticket, error)
	ListByWorkspace(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Ticket, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error
}

type ticketRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTicketRepo(db *gorm.DB, log *logger.Logger) TicketRepo {
	return &ticketRepo{db: db, log: log.With("repo", "TicketRepo")}
}

func (r *ticketRepo) Create(dbc dbctx.Context, row *types.Ticket) (*types.Ticket, error) {
	if row == nil {
		return nil, fmt.Errorf("missing ticket")
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

func (r *ticketRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Ticket, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing ticket_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.Ticket
	if err := txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ticketRepo) ListByWorkspace(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Ticket, error) {
	if workspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing workspace_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Ticket
	if err := txx.WithContext(dbc.Ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ticketRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing ticket_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.Ticket{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}
