package chat

import (
	"context"
	"testing"
	"time"

	"github.com/datafirst-hq/aidly-backend/internal/data/repos/testutil"
	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
)

func TestMessageRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewMessageRepo(db, testutil.Logger(t))

	u, ws := seedUserWorkspace(t, tx, "msgrepo")
	conv := &types.Conversation{UserID: u.ID, WorkspaceID: ws.ID, Title: "support"}
	if err := tx.Create(conv).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	now := time.Now().UTC()
	first, err := repo.Create(dbc, &types.Message{
		ConversationID: conv.ID,
		UserID:         &u.ID,
		Question:       "How do I reset my password?",
		Answer:         "Open Settings and choose Reset Password.",
		Model:          "gemini-2.5-flash",
		LatencyMS:      1420,
		Timestamp:      now.Add(-2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := repo.Create(dbc, &types.Message{
		ConversationID: conv.ID,
		UserID:         &u.ID,
		Question:       "And where do I find Settings?",
		Answer:         "Click your avatar in the top-right corner.",
		Model:          "gemini-2.5-flash",
		LatencyMS:      980,
		Timestamp:      now.Add(-1 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}

	if _, err := repo.Create(dbc, nil); err == nil {
		t.Fatalf("Create (nil): expected error")
	}

	listed, err := repo.ListByConversation(dbc, conv.ID, 0)
	if err != nil {
		t.Fatalf("ListByConversation: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("ListByConversation: want=2 got=%d", len(listed))
	}
	if listed[0].ID != first.ID || listed[1].ID != second.ID {
		t.Fatalf("ListByConversation order: expected oldest first")
	}
	if listed[0].LatencyMS != 1420 {
		t.Fatalf("LatencyMS: want=1420 got=%d", listed[0].LatencyMS)
	}

	count, err := repo.CountByConversation(dbc, conv.ID)
	if err != nil {
		t.Fatalf("CountByConversation: %v", err)
	}
	if count != 2 {
		t.Fatalf("CountByConversation: want=2 got=%d", count)
	}

	if err := repo.SetFeedback(dbc, second.ID, types.FeedbackUp); err != nil {
		t.Fatalf("SetFeedback: %v", err)
	}
	got, err := repo.GetByID(dbc, second.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Feedback != types.FeedbackUp {
		t.Fatalf("SetFeedback: want=%q got=%q", types.FeedbackUp, got.Feedback)
	}

	n, err := repo.DeleteByConversation(dbc, conv.ID)
	if err != nil {
		t.Fatalf("DeleteByConversation: %v", err)
	}
	if n != 2 {
		t.Fatalf("DeleteByConversation rows: want=2 got=%d", n)
	}
	count, err = repo.CountByConversation(dbc, conv.ID)
	if err != nil {
		t.Fatalf("CountByConversation after delete: %v", err)
	}
	if count != 0 {
		t.Fatalf("CountByConversation after delete: want=0 got=%d", count)
	}
}
