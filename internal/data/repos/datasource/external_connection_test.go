package datasource

import (
	"context"
	"testing"

	"github.com/datafirst-hq/aidly-backend/internal/data/repos/testutil"
	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
)

func TestExternalConnectionRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewExternalConnectionRepo(db, testutil.Logger(t))

	_, ws := seedUserWorkspace(t, tx, "connrepo")

	conn := &types.ExternalConnection{
		WorkspaceID: ws.ID,
		Provider:    types.ProviderClickUp,
		IsActive:    true,
	}
	if err := conn.EncodeCredentials(types.ExternalCredentials{APIToken: "pk_test_123"}); err != nil {
		t.Fatalf("EncodeCredentials: %v", err)
	}
	conn, err := repo.Upsert(dbc, conn)
	if err != nil {
		t.Fatalf("Upsert (insert): %v", err)
	}

	got, err := repo.GetByWorkspaceProvider(dbc, ws.ID, types.ProviderClickUp)
	if err != nil {
		t.Fatalf("GetByWorkspaceProvider: %v", err)
	}
	if got.ID != conn.ID {
		t.Fatalf("GetByWorkspaceProvider id: want=%s got=%s", conn.ID, got.ID)
	}
	decoded, err := got.DecodeCredentials()
	if err != nil {
		t.Fatalf("DecodeCredentials: %v", err)
	}
	if decoded.APIToken != "pk_test_123" {
		t.Fatalf("DecodeCredentials token: want=%q got=%q", "pk_test_123", decoded.APIToken)
	}

	// A second upsert replaces the stored credentials.
	rotated := &types.ExternalConnection{
		WorkspaceID: ws.ID,
		Provider:    types.ProviderClickUp,
		IsActive:    true,
	}
	if err := rotated.EncodeCredentials(types.ExternalCredentials{APIToken: "pk_test_456"}); err != nil {
		t.Fatalf("EncodeCredentials (rotate): %v", err)
	}
	if _, err := repo.Upsert(dbc, rotated); err != nil {
		t.Fatalf("Upsert (rotate): %v", err)
	}
	got, err = repo.GetByWorkspaceProvider(dbc, ws.ID, types.ProviderClickUp)
	if err != nil {
		t.Fatalf("GetByWorkspaceProvider after rotate: %v", err)
	}
	decoded, err = got.DecodeCredentials()
	if err != nil {
		t.Fatalf("DecodeCredentials after rotate: %v", err)
	}
	if decoded.APIToken != "pk_test_456" {
		t.Fatalf("DecodeCredentials after rotate: want=%q got=%q", "pk_test_456", decoded.APIToken)
	}

	listed, err := repo.ListByWorkspace(dbc, ws.ID)
	if err != nil {
		t.Fatalf("ListByWorkspace: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("ListByWorkspace: want=1 got=%d", len(listed))
	}

	if err := repo.Deactivate(dbc, ws.ID, types.ProviderClickUp); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	got, err = repo.GetByWorkspaceProvider(dbc, ws.ID, types.ProviderClickUp)
	if err != nil {
		t.Fatalf("GetByWorkspaceProvider after deactivate: %v", err)
	}
	if got.IsActive {
		t.Fatalf("Deactivate: expected is_active=false")
	}
}
