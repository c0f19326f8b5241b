package services

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/data/repos/datasource"
	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/domain/apperr"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/syncx"
	"github.com/datafirst-hq/aidly-backend/internal/platform/qdrant"
)

const batchSyncConcurrency = 4

// SyncFailure reports one datasource a batch run could not process.
type SyncFailure struct {
	Reference string `json:"ref"`
	Error     string `json:"error"`
}

// BatchSyncResult aggregates a workspace-wide sync or unsync run. For unsync
// runs SyncedCount holds the number of sources taken out of the store and
// TotalDocsAdded stays zero.
type BatchSyncResult struct {
	SyncedCount    int           `json:"synced_count"`
	TotalDocsAdded int           `json:"total_docs_added"`
	Failed         []SyncFailure `json:"failed"`
}

// UploadInput registers one uploaded file with a workspace.
type UploadInput struct {
	WorkspaceID uuid.UUID
	OwnerID     uuid.UUID
	Filename    string
	Content     io.Reader
	Category    string
	Tags        string
}

// SyncService owns the datasource lifecycle: registering uploads and urls,
// moving sources between synced and unsynced state, and removing them.
// Operations on the same datasource are serialized by a keyed mutex, and the
// vector store is always touched before the relational flag so an interrupted
// run leaves the store cleaner than the flags claim, never dirtier.
type SyncService interface {
	RegisterUpload(ctx context.Context, in UploadInput) (*types.DataSource, error)
	RegisterURL(ctx context.Context, workspaceID, ownerID uuid.UUID, rawURL string) (*types.DataSource, error)
	ListSources(ctx context.Context, workspaceID uuid.UUID) ([]*types.DataSource, error)
	SyncSource(ctx context.Context, workspaceID, id uuid.UUID) (*IngestResult, error)
	UnsyncSource(ctx context.Context, workspaceID, id uuid.UUID) error
	DeleteSource(ctx context.Context, workspaceID, id uuid.UUID) error
	SyncAllRegular(ctx context.Context, workspaceID uuid.UUID) (*BatchSyncResult, error)
	UnsyncAllRegular(ctx context.Context, workspaceID uuid.UUID) (*BatchSyncResult, error)
}

type syncService struct {
	log      *logger.Logger
	sources  datasource.DataSourceRepo
	ingestor Ingestor
	store    qdrant.VectorStore
	dataDir  string
	locks    *syncx.KeyedMutex
}

func NewSyncService(
	log *logger.Logger,
	sources datasource.DataSourceRepo,
	ingestor Ingestor,
	store qdrant.VectorStore,
	dataDir string,
) SyncService {
	if dataDir == "" {
		dataDir = "data"
	}
	return &syncService{
		log:      log.With("service", "SyncService"),
		sources:  sources,
		ingestor: ingestor,
		store:    store,
		dataDir:  dataDir,
		locks:    syncx.NewKeyedMutex(),
	}
}

// RegisterUpload persists the file under the workspace's document tree and
// upserts its DataSource row. Re-uploading an existing reference replaces the
// file on disk and flips the row back to unsynced: the store still holds
// chunks of the old content until the next sync.
func (s *syncService) RegisterUpload(ctx context.Context, in UploadInput) (*types.DataSource, error) {
	const op = "SyncService.RegisterUpload"
	if in.WorkspaceID == uuid.Nil || in.OwnerID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing workspace or owner", nil)
	}
	filename := filepath.Base(strings.TrimSpace(in.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing filename", nil)
	}
	if in.Content == nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing file content", nil)
	}

	dir := filepath.Join(s.dataDir, "workspaces", in.WorkspaceID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	path := filepath.Join(dir, filename)
	written, err := writeUploadFile(path, in.Content)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	sizeMB := float64(written) / (1024 * 1024)

	dbc := dbctx.Context{Ctx: ctx}
	row, err := s.sources.GetByReference(dbc, in.WorkspaceID, filename)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row, err = s.sources.Create(dbc, &types.DataSource{
			WorkspaceID: in.WorkspaceID,
			OwnerID:     in.OwnerID,
			SourceType:  types.SourceTypeFile,
			Reference:   filename,
			Path:        path,
			SizeMB:      sizeMB,
			Category:    in.Category,
			Tags:        in.Tags,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op, err)
		}
	case err != nil:
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	default:
		updates := map[string]interface{}{
			"path":      path,
			"size_mb":   sizeMB,
			"category":  in.Category,
			"tags":      in.Tags,
			"is_synced": false,
		}
		if err := s.sources.UpdateFields(dbc, row.ID, updates); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op, err)
		}
		row, err = s.sources.GetByID(dbc, row.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op, err)
		}
	}
	s.log.Info("upload registered", "workspace_id", in.WorkspaceID, "reference", filename, "size_mb", sizeMB)
	return row, nil
}

// RegisterURL adds a web page as an unsynced datasource. The url itself is
// the reference, so the same page cannot be added to a workspace twice.
func (s *syncService) RegisterURL(ctx context.Context, workspaceID, ownerID uuid.UUID, rawURL string) (*types.DataSource, error) {
	const op = "SyncService.RegisterURL"
	if workspaceID == uuid.Nil || ownerID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing workspace or owner", nil)
	}
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "invalid url", err)
	}

	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.sources.GetByReference(dbc, workspaceID, rawURL); err == nil {
		return nil, apperr.New(apperr.CodeConflict, op, "url already added to this workspace", nil)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}

	row, err := s.sources.Create(dbc, &types.DataSource{
		WorkspaceID: workspaceID,
		OwnerID:     ownerID,
		SourceType:  types.SourceTypeURL,
		Reference:   rawURL,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("url registered", "workspace_id", workspaceID, "reference", rawURL)
	return row, nil
}

func (s *syncService) ListSources(ctx context.Context, workspaceID uuid.UUID) ([]*types.DataSource, error) {
	const op = "SyncService.ListSources"
	if workspaceID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing workspace", nil)
	}
	out, err := s.sources.ListByWorkspace(dbctx.Context{Ctx: ctx}, workspaceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return out, nil
}

func (s *syncService) SyncSource(ctx context.Context, workspaceID, id uuid.UUID) (*IngestResult, error) {
	const op = "SyncService.SyncSource"
	unlock := s.locks.Lock(id.String())
	defer unlock()

	src, err := s.getSource(ctx, op, workspaceID, id)
	if err != nil {
		return nil, err
	}
	res, err := s.ingestor.Ingest(ctx, src)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if err := s.sources.SetSynced(dbctx.Context{Ctx: ctx}, src.ID, res.LastSyncedAt); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("source synced", "reference", src.Reference, "chunks", res.ChunksAdded)
	return res, nil
}

func (s *syncService) UnsyncSource(ctx context.Context, workspaceID, id uuid.UUID) error {
	const op = "SyncService.UnsyncSource"
	unlock := s.locks.Lock(id.String())
	defer unlock()

	src, err := s.getSource(ctx, op, workspaceID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBySource(ctx, src.WorkspaceID.String(), src.Reference); err != nil {
		return apperr.Wrap(apperr.CodeUpstreamUnavailable, op, err)
	}
	if err := s.sources.SetUnsynced(dbctx.Context{Ctx: ctx}, src.ID); err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("source unsynced", "reference", src.Reference)
	return nil
}

// DeleteSource removes the datasource row along with its chunks and, for
// file-backed sources, the file on disk. Missing files are not an error.
func (s *syncService) DeleteSource(ctx context.Context, workspaceID, id uuid.UUID) error {
	const op = "SyncService.DeleteSource"
	unlock := s.locks.Lock(id.String())
	defer unlock()

	src, err := s.getSource(ctx, op, workspaceID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBySource(ctx, src.WorkspaceID.String(), src.Reference); err != nil {
		return apperr.Wrap(apperr.CodeUpstreamUnavailable, op, err)
	}
	if src.Path != "" && src.SourceType != types.SourceTypeURL {
		if err := os.Remove(src.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("source file removal failed", "path", src.Path, "error", err)
		}
	}
	if err := s.sources.Delete(dbctx.Context{Ctx: ctx}, src.ID); err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("source deleted", "reference", src.Reference)
	return nil
}

// SyncAllRegular ingests every unsynced file and url source in the
// workspace. External tasks are excluded; they sync through their provider
// endpoints. Each source commits independently and failures are collected,
// so one broken source never aborts the batch.
func (s *syncService) SyncAllRegular(ctx context.Context, workspaceID uuid.UUID) (*BatchSyncResult, error) {
	const op = "SyncService.SyncAllRegular"
	pending, err := s.sources.ListUnsynced(dbctx.Context{Ctx: ctx}, workspaceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}

	out := &BatchSyncResult{Failed: []SyncFailure{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchSyncConcurrency)
	for _, src := range pending {
		if src.SourceType == types.SourceTypeExternalTask {
			continue
		}
		src := src
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := s.SyncSource(gctx, workspaceID, src.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failed = append(out.Failed, SyncFailure{Reference: src.Reference, Error: err.Error()})
				return nil
			}
			out.SyncedCount++
			out.TotalDocsAdded += res.ChunksAdded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}

	s.log.Info("batch sync finished",
		"workspace_id", workspaceID,
		"synced", out.SyncedCount,
		"docs_added", out.TotalDocsAdded,
		"failed", len(out.Failed))
	return out, nil
}

// UnsyncAllRegular takes every synced file and url source in the workspace
// out of the vector store, source by source. No store rebuild is involved.
func (s *syncService) UnsyncAllRegular(ctx context.Context, workspaceID uuid.UUID) (*BatchSyncResult, error) {
	const op = "SyncService.UnsyncAllRegular"
	synced, err := s.sources.ListSynced(dbctx.Context{Ctx: ctx}, workspaceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}

	out := &BatchSyncResult{Failed: []SyncFailure{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchSyncConcurrency)
	for _, src := range synced {
		if src.SourceType == types.SourceTypeExternalTask {
			continue
		}
		src := src
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			err := s.UnsyncSource(gctx, workspaceID, src.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failed = append(out.Failed, SyncFailure{Reference: src.Reference, Error: err.Error()})
				return nil
			}
			out.SyncedCount++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}

	s.log.Info("batch unsync finished",
		"workspace_id", workspaceID,
		"unsynced", out.SyncedCount,
		"failed", len(out.Failed))
	return out, nil
}

func writeUploadFile(path string, content io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// getSource loads a row and pins it to the caller's workspace. A source in
// another workspace reads as missing so ids never leak across tenants.
func (s *syncService) getSource(ctx context.Context, op string, workspaceID, id uuid.UUID) (*types.DataSource, error) {
	src, err := s.sources.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, op, "data source not found", err)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if src.WorkspaceID != workspaceID {
		return nil, apperr.New(apperr.CodeNotFound, op, "data source not found", nil)
	}
	return src, nil
}
