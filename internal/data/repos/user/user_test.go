package user

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/datafirst-hq/aidly-backend/internal/data/repos/testutil"
	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
)

func TestUserRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewUserRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	created, err := repo.Create(dbc, &types.User{
		Username: "userrepo",
		Email:    "userrepo@example.com",
		Password: "hashed-pw",
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("Create: expected generated id")
	}

	got, err := repo.GetByID(dbc, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Username != "userrepo" {
		t.Fatalf("GetByID username: want=%q got=%q", "userrepo", got.Username)
	}

	got, err = repo.GetByUsername(dbc, "userrepo")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("GetByUsername id: want=%s got=%s", created.ID, got.ID)
	}

	exists, err := repo.UsernameExists(dbc, "userrepo")
	if err != nil {
		t.Fatalf("UsernameExists: %v", err)
	}
	if !exists {
		t.Fatalf("UsernameExists: expected true")
	}

	exists, err = repo.UsernameExists(dbc, "does-not-exist")
	if err != nil {
		t.Fatalf("UsernameExists (missing): %v", err)
	}
	if exists {
		t.Fatalf("UsernameExists (missing): expected false")
	}

	wsID := uuid.New()
	if err := repo.UpdateCurrentWorkspace(dbc, created.ID, wsID); err != nil {
		t.Fatalf("UpdateCurrentWorkspace: %v", err)
	}
	got, err = repo.GetByID(dbc, created.ID)
	if err != nil {
		t.Fatalf("GetByID after workspace update: %v", err)
	}
	if got.CurrentWorkspaceID == nil || *got.CurrentWorkspaceID != wsID {
		t.Fatalf("CurrentWorkspaceID: want=%s got=%v", wsID, got.CurrentWorkspaceID)
	}

	if err := repo.UpdateFields(dbc, created.ID, map[string]interface{}{"is_admin": true}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err = repo.GetByID(dbc, created.ID)
	if err != nil {
		t.Fatalf("GetByID after UpdateFields: %v", err)
	}
	if !got.IsAdmin {
		t.Fatalf("UpdateFields: expected is_admin=true")
	}
}
