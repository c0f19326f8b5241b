package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/datafirst-hq/aidly-backend/internal/platform/qdrant"
)

// instrumentedVectorStore wraps every store operation in a span so slow
// retrievals and upserts show up on the request trace.
type instrumentedVectorStore struct {
	inner  qdrant.VectorStore
	tracer trace.Tracer
}

func instrumentVectorStore(inner qdrant.VectorStore) qdrant.VectorStore {
	if inner == nil {
		return nil
	}
	return &instrumentedVectorStore{
		inner:  inner,
		tracer: otel.Tracer("vectorstore"),
	}
}

func (s *instrumentedVectorStore) EnsureCollection(ctx context.Context, dim int) error {
	ctx, span := s.tracer.Start(ctx, "vectorstore.ensure_collection",
		trace.WithAttributes(attribute.Int("dim", dim)))
	defer span.End()
	return record(span, s.inner.EnsureCollection(ctx, dim))
}

func (s *instrumentedVectorStore) Upsert(ctx context.Context, chunks []qdrant.Chunk) error {
	ctx, span := s.tracer.Start(ctx, "vectorstore.upsert",
		trace.WithAttributes(attribute.Int("chunks", len(chunks))))
	defer span.End()
	return record(span, s.inner.Upsert(ctx, chunks))
}

func (s *instrumentedVectorStore) SearchWithScore(ctx context.Context, vector []float32, limit int, workspaceID string) ([]qdrant.ScoredChunk, error) {
	ctx, span := s.tracer.Start(ctx, "vectorstore.search",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()
	out, err := s.inner.SearchWithScore(ctx, vector, limit, workspaceID)
	span.SetAttributes(attribute.Int("hits", len(out)))
	return out, record(span, err)
}

func (s *instrumentedVectorStore) DeleteBySource(ctx context.Context, workspaceID, sourceReference string) error {
	ctx, span := s.tracer.Start(ctx, "vectorstore.delete_by_source",
		trace.WithAttributes(attribute.String("source_reference", sourceReference)))
	defer span.End()
	return record(span, s.inner.DeleteBySource(ctx, workspaceID, sourceReference))
}

func (s *instrumentedVectorStore) Reset(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "vectorstore.reset")
	defer span.End()
	return record(span, s.inner.Reset(ctx))
}

func (s *instrumentedVectorStore) HealthCheck(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "vectorstore.health_check")
	defer span.End()
	return record(span, s.inner.HealthCheck(ctx))
}

func (s *instrumentedVectorStore) Close() error { return s.inner.Close() }

func record(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
