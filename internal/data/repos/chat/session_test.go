package chat

import (
	"context"
	"testing"
	"time"

	"github.com/datafirst-hq/aidly-backend/internal/data/repos/testutil"
	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
)

func TestSessionRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewSessionRepo(db, testutil.Logger(t))

	u, ws := seedUserWorkspace(t, tx, "sessionrepo")
	bot := &types.Bot{Name: "Widget Bot", WorkspaceID: ws.ID, OwnerID: u.ID, IsActive: true}
	if err := tx.Create(bot).Error; err != nil {
		t.Fatalf("seed bot: %v", err)
	}

	s1, err := repo.Create(dbc, &types.ChatSession{
		BotID:        bot.ID,
		SessionToken: "session-token-1",
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("Create s1: %v", err)
	}
	if s1.LastActivityAt.IsZero() {
		t.Fatalf("Create: expected last_activity_at to be set")
	}
	if _, err := repo.Create(dbc, &types.ChatSession{
		BotID:        bot.ID,
		SessionToken: "session-token-2",
		IsActive:     true,
	}); err != nil {
		t.Fatalf("Create s2: %v", err)
	}

	got, err := repo.GetByToken(dbc, "session-token-1")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if got.ID != s1.ID {
		t.Fatalf("GetByToken id: want=%s got=%s", s1.ID, got.ID)
	}

	count, err := repo.CountActiveByBot(dbc, bot.ID)
	if err != nil {
		t.Fatalf("CountActiveByBot: %v", err)
	}
	if count != 2 {
		t.Fatalf("CountActiveByBot: want=2 got=%d", count)
	}

	if err := repo.Touch(dbc, s1.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := repo.Touch(dbc, s1.ID); err != nil {
		t.Fatalf("Touch (second): %v", err)
	}
	got, err = repo.GetByToken(dbc, "session-token-1")
	if err != nil {
		t.Fatalf("GetByToken after touch: %v", err)
	}
	if got.MessagesCount != 2 {
		t.Fatalf("Touch messages_count: want=2 got=%d", got.MessagesCount)
	}

	if err := repo.Deactivate(dbc, s1.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	count, err = repo.CountActiveByBot(dbc, bot.ID)
	if err != nil {
		t.Fatalf("CountActiveByBot after deactivate: %v", err)
	}
	if count != 1 {
		t.Fatalf("CountActiveByBot after deactivate: want=1 got=%d", count)
	}

	n, err := repo.DeactivateIdleBefore(dbc, time.Now().UTC().Add(1*time.Minute))
	if err != nil {
		t.Fatalf("DeactivateIdleBefore: %v", err)
	}
	if n != 1 {
		t.Fatalf("DeactivateIdleBefore rows: want=1 got=%d", n)
	}
	count, err = repo.CountActiveByBot(dbc, bot.ID)
	if err != nil {
		t.Fatalf("CountActiveByBot after idle sweep: %v", err)
	}
	if count != 0 {
		t.Fatalf("CountActiveByBot after idle sweep: want=0 got=%d", count)
	}
}
