package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
	"github.com/datafirst-hq/aidly-backend/internal/platform/qdrant"
)

// Fakes shared by the service tests in this package.

var errAny = errors.New("boom")

type fakeEmbedder struct {
	vec       []float32
	err       error
	calls     int
	lastText  string
	lastTexts []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	if f.vec != nil {
		return f.vec, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.lastTexts = texts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

type fakeChat struct {
	reply      string
	err        error
	calls      int
	lastSystem string
	lastUser   string
	lastTemp   float64
}

func (f *fakeChat) Generate(ctx context.Context, system, user string, temperature float64) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	f.lastTemp = temperature
	if f.err != nil {
		return "", f.err
	}
	if f.reply == "" {
		return "fake answer", nil
	}
	return f.reply, nil
}

func (f *fakeChat) Model() string { return "fake-chat" }

type fakeTranslator struct {
	enabled    bool
	translated string
	detected   string
	err        error
	calls      int
	lastSource string
	lastTarget string
}

func (f *fakeTranslator) Enabled() bool { return f.enabled }

func (f *fakeTranslator) Detect(ctx context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.detected == "" {
		return "en", nil
	}
	return f.detected, nil
}

func (f *fakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.calls++
	f.lastSource = source
	f.lastTarget = target
	if f.err != nil {
		return "", f.err
	}
	if f.translated != "" {
		return f.translated, nil
	}
	return text, nil
}

type fakeVectorStore struct {
	mu            sync.Mutex
	hits          []qdrant.ScoredChunk
	searchErr     error
	upsertErr     error
	deleteErr     error
	searchCalls   int
	lastVector    []float32
	lastLimit     int
	lastWorkspace string
	upserted      [][]qdrant.Chunk
	deleted       []string
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, dim int) error { return nil }

func (f *fakeVectorStore) Upsert(ctx context.Context, chunks []qdrant.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, chunks)
	return nil
}

func (f *fakeVectorStore) SearchWithScore(ctx context.Context, vector []float32, limit int, workspaceID string) ([]qdrant.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	f.lastVector = vector
	f.lastLimit = limit
	f.lastWorkspace = workspaceID
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeVectorStore) DeleteBySource(ctx context.Context, workspaceID, sourceReference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, workspaceID+"/"+sourceReference)
	return nil
}

func (f *fakeVectorStore) Reset(ctx context.Context) error { return nil }

func (f *fakeVectorStore) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeVectorStore) Close() error { return nil }

type fakeIngestor struct {
	mu     sync.Mutex
	errs   map[string]error
	chunks map[string]int
	calls  []string
}

func (f *fakeIngestor) Ingest(ctx context.Context, src *types.DataSource) (*IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, src.Reference)
	if err := f.errs[src.Reference]; err != nil {
		return nil, err
	}
	n := 2
	if v, ok := f.chunks[src.Reference]; ok {
		n = v
	}
	return &IngestResult{ChunksAdded: n, LastSyncedAt: time.Now().UTC()}, nil
}

// fakeSourceRepo keeps DataSource rows in memory, listing them in insertion
// order where the real repo orders by created_at.
type fakeSourceRepo struct {
	mu     sync.Mutex
	rows   map[uuid.UUID]*types.DataSource
	order  []uuid.UUID
	getErr error
	setErr error
}

func newFakeSourceRepo() *fakeSourceRepo {
	return &fakeSourceRepo{rows: map[uuid.UUID]*types.DataSource{}}
}

func (f *fakeSourceRepo) add(src *types.DataSource) *types.DataSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	f.rows[src.ID] = src
	f.order = append(f.order, src.ID)
	return src
}

func (f *fakeSourceRepo) get(id uuid.UUID) *types.DataSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil
	}
	cp := *row
	return &cp
}

func (f *fakeSourceRepo) Create(dbc dbctx.Context, row *types.DataSource) (*types.DataSource, error) {
	return f.add(row), nil
}

func (f *fakeSourceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DataSource, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	row := f.get(id)
	if row == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (f *fakeSourceRepo) GetByReference(dbc dbctx.Context, workspaceID uuid.UUID, reference string) (*types.DataSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		row := f.rows[id]
		if row.WorkspaceID == workspaceID && row.Reference == reference {
			cp := *row
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSourceRepo) ListByWorkspace(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.DataSource, error) {
	return f.list(func(row *types.DataSource) bool { return row.WorkspaceID == workspaceID }), nil
}

func (f *fakeSourceRepo) ListByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DataSource, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return f.list(func(row *types.DataSource) bool { return want[row.ID] }), nil
}

func (f *fakeSourceRepo) ListUnsynced(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.DataSource, error) {
	return f.list(func(row *types.DataSource) bool {
		return row.WorkspaceID == workspaceID && !row.IsSynced
	}), nil
}

func (f *fakeSourceRepo) ListSynced(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.DataSource, error) {
	return f.list(func(row *types.DataSource) bool {
		return row.WorkspaceID == workspaceID && row.IsSynced
	}), nil
}

func (f *fakeSourceRepo) list(keep func(*types.DataSource) bool) []*types.DataSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.DataSource
	for _, id := range f.order {
		row := f.rows[id]
		if keep(row) {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out
}

func (f *fakeSourceRepo) SetSynced(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	row.IsSynced = true
	row.LastSyncedAt = &at
	return nil
}

func (f *fakeSourceRepo) SetUnsynced(dbc dbctx.Context, id uuid.UUID) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	row.IsSynced = false
	return nil
}

func (f *fakeSourceRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, val := range updates {
		switch key {
		case "path":
			row.Path = val.(string)
		case "size_mb":
			row.SizeMB = val.(float64)
		case "category":
			row.Category = val.(string)
		case "tags":
			row.Tags = val.(string)
		case "is_synced":
			row.IsSynced = val.(bool)
		}
	}
	return nil
}

func (f *fakeSourceRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	for i, got := range f.order {
		if got == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}
