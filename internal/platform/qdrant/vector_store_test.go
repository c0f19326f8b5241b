package qdrant

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("ws-1", "product_docs.txt", 0)
	b := pointID("ws-1", "product_docs.txt", 0)
	if a != b {
		t.Fatalf("pointID not deterministic: %q vs %q", a, b)
	}

	if pointID("ws-1", "product_docs.txt", 1) == a {
		t.Fatalf("pointID: chunk index should change the id")
	}
	if pointID("ws-2", "product_docs.txt", 0) == a {
		t.Fatalf("pointID: workspace should change the id")
	}
	if pointID("ws-1", "other.txt", 0) == a {
		t.Fatalf("pointID: source reference should change the id")
	}
}

func TestIsTransient(t *testing.T) {
	transient := []error{
		status.Error(codes.Unavailable, "connection refused"),
		status.Error(codes.DeadlineExceeded, "deadline"),
		status.Error(codes.ResourceExhausted, "throttled"),
		status.Error(codes.Aborted, "aborted"),
		context.DeadlineExceeded,
	}
	for _, err := range transient {
		if !isTransient(err) {
			t.Fatalf("isTransient(%v): want=true", err)
		}
	}

	permanent := []error{
		status.Error(codes.NotFound, "missing collection"),
		status.Error(codes.InvalidArgument, "bad vector"),
		status.Error(codes.Unauthenticated, "bad key"),
		errors.New("plain error"),
		nil,
	}
	for _, err := range permanent {
		if isTransient(err) {
			t.Fatalf("isTransient(%v): want=false", err)
		}
	}
}

func TestClassifyGRPCError(t *testing.T) {
	err := classifyGRPCError("search", status.Error(codes.Unavailable, "down"))
	var oe *OperationError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *OperationError, got=%T", err)
	}
	if oe.Code != OperationErrorTransportFailed {
		t.Fatalf("code: want=%q got=%q", OperationErrorTransportFailed, oe.Code)
	}
	if oe.GRPCCode != codes.Unavailable {
		t.Fatalf("grpc code: want=%s got=%s", codes.Unavailable, oe.GRPCCode)
	}
	if oe.Operation != "search" {
		t.Fatalf("operation: want=%q got=%q", "search", oe.Operation)
	}

	err = classifyGRPCError("upsert", status.Error(codes.DeadlineExceeded, "slow"))
	if !errors.As(err, &oe) || oe.Code != OperationErrorTimeout {
		t.Fatalf("deadline: want code=%q got=%v", OperationErrorTimeout, err)
	}

	err = classifyGRPCError("search", context.DeadlineExceeded)
	if !errors.As(err, &oe) || oe.Code != OperationErrorTimeout {
		t.Fatalf("context deadline: want code=%q got=%v", OperationErrorTimeout, err)
	}

	err = classifyGRPCError("search", status.Error(codes.InvalidArgument, "bad"))
	if !errors.As(err, &oe) || oe.Code != OperationErrorQueryFailed {
		t.Fatalf("invalid argument: want code=%q got=%v", OperationErrorQueryFailed, err)
	}

	if classifyGRPCError("noop", nil) != nil {
		t.Fatalf("classifyGRPCError(nil): want=nil")
	}
}

func TestUpsertValidation(t *testing.T) {
	s := &vectorStore{cfg: Config{Collection: "Aidly"}}

	cases := []Chunk{
		{SourceReference: "doc.txt", Vector: []float32{1}},
		{WorkspaceID: "ws-1", Vector: []float32{1}},
		{WorkspaceID: "ws-1", SourceReference: "doc.txt"},
	}
	for i, c := range cases {
		err := s.Upsert(context.Background(), []Chunk{c})
		var oe *OperationError
		if !errors.As(err, &oe) || oe.Code != OperationErrorValidation {
			t.Fatalf("case %d: want validation error, got=%v", i, err)
		}
	}

	if err := s.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("Upsert(empty): %v", err)
	}
}

func TestSearchWithScoreValidation(t *testing.T) {
	s := &vectorStore{cfg: Config{Collection: "Aidly"}}

	_, err := s.SearchWithScore(context.Background(), nil, 1, "ws-1")
	var oe *OperationError
	if !errors.As(err, &oe) || oe.Code != OperationErrorValidation {
		t.Fatalf("empty vector: want validation error, got=%v", err)
	}

	_, err = s.SearchWithScore(context.Background(), []float32{1}, 1, "")
	if !errors.As(err, &oe) || oe.Code != OperationErrorValidation {
		t.Fatalf("missing workspace: want validation error, got=%v", err)
	}
}
