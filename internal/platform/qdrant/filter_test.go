package qdrant

import (
	"testing"
)

func TestWorkspaceFilter(t *testing.T) {
	f := workspaceFilter("ws-1")
	if len(f.Must) != 1 {
		t.Fatalf("must length: want=1 got=%d", len(f.Must))
	}
	field := f.Must[0].GetField()
	if field == nil {
		t.Fatalf("missing field condition")
	}
	if field.Key != PayloadWorkspaceKey {
		t.Fatalf("key: want=%q got=%q", PayloadWorkspaceKey, field.Key)
	}
	if got := field.GetMatch().GetKeyword(); got != "ws-1" {
		t.Fatalf("keyword: want=%q got=%q", "ws-1", got)
	}
}

func TestSourceFilter(t *testing.T) {
	f := sourceFilter("ws-1", "product_docs.txt")
	if len(f.Must) != 2 {
		t.Fatalf("must length: want=2 got=%d", len(f.Must))
	}
	gotSource := ""
	for _, cond := range f.Must {
		field := cond.GetField()
		if field == nil {
			t.Fatalf("missing field condition")
		}
		if field.Key == PayloadSourceKey {
			gotSource = field.GetMatch().GetKeyword()
		}
	}
	if gotSource != "product_docs.txt" {
		t.Fatalf("source keyword: want=%q got=%q", "product_docs.txt", gotSource)
	}
}
