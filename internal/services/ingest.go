package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"

	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/domain/apperr"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
	"github.com/datafirst-hq/aidly-backend/internal/platform/qdrant"
)

// IngestResult reports what one ingestion run put into the vector store.
type IngestResult struct {
	ChunksAdded  int
	LastSyncedAt time.Time
}

// Ingestor loads a data source's content, splits it and replaces the
// source's chunks in the vector store. Database sync flags are the caller's
// concern; a failed run leaves both the store and the flags as they were.
type Ingestor interface {
	Ingest(ctx context.Context, source *types.DataSource) (*IngestResult, error)
}

type ingestor struct {
	log        *logger.Logger
	splitter   DocumentSplitter
	embedder   Embedder
	store      qdrant.VectorStore
	httpClient *http.Client
}

func NewIngestor(log *logger.Logger, splitter DocumentSplitter, embedder Embedder, store qdrant.VectorStore) Ingestor {
	return &ingestor{
		log:        log.With("service", "Ingestor"),
		splitter:   splitter,
		embedder:   embedder,
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *ingestor) Ingest(ctx context.Context, source *types.DataSource) (*IngestResult, error) {
	const op = "Ingestor.Ingest"
	if source == nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing data source", nil)
	}

	content, err := s.load(ctx, source)
	if err != nil {
		return nil, err
	}

	workspaceID := source.WorkspaceID.String()
	chunks := s.splitter.Split(source.Reference, workspaceID, content)
	if len(chunks) == 0 {
		s.log.Warn("source produced no chunks", "reference", source.Reference)
		if err := s.store.DeleteBySource(ctx, workspaceID, source.Reference); err != nil {
			return nil, apperr.Wrap(apperr.CodeUpstreamUnavailable, op, err)
		}
		return &IngestResult{ChunksAdded: 0, LastSyncedAt: time.Now().UTC()}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUpstreamUnavailable, op, err)
	}
	if len(vectors) != len(chunks) {
		return nil, apperr.New(apperr.CodeUpstreamUnavailable, op,
			fmt.Sprintf("embedding count mismatch: %d texts, %d vectors", len(chunks), len(vectors)), nil)
	}

	// Old chunks go only once the replacements are embedded, so a failed
	// run cannot leave the source absent from the store.
	if err := s.store.DeleteBySource(ctx, workspaceID, source.Reference); err != nil {
		return nil, apperr.Wrap(apperr.CodeUpstreamUnavailable, op, err)
	}

	points := make([]qdrant.Chunk, len(chunks))
	for i, c := range chunks {
		points[i] = qdrant.Chunk{
			WorkspaceID:     c.WorkspaceID,
			SourceReference: c.SourceReference,
			Index:           c.Index,
			Content:         c.Text,
			Vector:          vectors[i],
		}
	}
	if err := s.store.Upsert(ctx, points); err != nil {
		return nil, apperr.Wrap(apperr.CodeUpstreamUnavailable, op, err)
	}

	s.log.Info("source ingested",
		"reference", source.Reference,
		"workspace_id", workspaceID,
		"chunks", len(points),
	)
	return &IngestResult{ChunksAdded: len(points), LastSyncedAt: time.Now().UTC()}, nil
}

func (s *ingestor) load(ctx context.Context, source *types.DataSource) (string, error) {
	const op = "Ingestor.Load"
	switch source.SourceType {
	case types.SourceTypeURL:
		return s.loadURL(ctx, source.Reference)
	case types.SourceTypeFile, types.SourceTypeExternalTask:
		return s.loadFile(ctx, source)
	default:
		return "", apperr.New(apperr.CodeInvalidInput, op,
			fmt.Sprintf("unsupported source type: %s", source.SourceType), nil)
	}
}

func (s *ingestor) loadFile(ctx context.Context, source *types.DataSource) (string, error) {
	const op = "Ingestor.LoadFile"
	if source.Path == "" {
		return "", apperr.New(apperr.CodeInvalidInput, op, "data source has no file path", nil)
	}
	ref := strings.ToLower(source.Reference)
	switch {
	case strings.HasSuffix(ref, ".txt"), strings.HasSuffix(ref, ".md"):
		raw, err := os.ReadFile(source.Path)
		if err != nil {
			return "", apperr.Wrap(apperr.CodeInvalidInput, op, err)
		}
		return string(raw), nil
	case strings.HasSuffix(ref, ".pdf"):
		return s.loadPDF(ctx, source.Path)
	default:
		return "", apperr.New(apperr.CodeInvalidInput, op,
			fmt.Sprintf("unsupported file type: %s", source.Reference), nil)
	}
}

func (s *ingestor) loadPDF(ctx context.Context, path string) (string, error) {
	const op = "Ingestor.LoadPDF"
	f, err := os.Open(path)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInvalidInput, op, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInvalidInput, op, err)
	}
	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInvalidInput, op, err)
	}
	return joinDocuments(docs), nil
}

func (s *ingestor) loadURL(ctx context.Context, url string) (string, error) {
	const op = "Ingestor.LoadURL"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInvalidInput, op, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeUpstreamUnavailable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.New(apperr.CodeUpstreamUnavailable, op,
			fmt.Sprintf("fetch %s: http %d", url, resp.StatusCode), nil)
	}
	docs, err := documentloaders.NewHTML(resp.Body).Load(ctx)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeUpstreamUnavailable, op, err)
	}
	return joinDocuments(docs), nil
}

func joinDocuments(docs []schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if t := strings.TrimSpace(d.PageContent); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
