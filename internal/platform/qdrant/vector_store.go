package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/datafirst-hq/aidly-backend/internal/pkg/ctxutil"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/httpx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

const (
	PayloadContentKey   = "text"
	PayloadWorkspaceKey = "workspace_id"
	PayloadSourceKey    = "source_reference"
	PayloadChunkKey     = "chunk_index"

	requestTimeout = 10 * time.Second
	maxMessageSize = 32 * 1024 * 1024
	retryAttempts  = 3
	retryBaseDelay = 200 * time.Millisecond
)

var pointIDNamespaceUUID = uuid.MustParse("4c9a1f0b-6d82-4e11-9b3a-ce85a10f6d42")

// Chunk is one embedded slice of a knowledge source, ready to upsert.
type Chunk struct {
	WorkspaceID     string
	SourceReference string
	Index           int
	Content         string
	Vector          []float32
}

// ScoredChunk is a retrieval hit. Score is cosine similarity, higher is
// closer.
type ScoredChunk struct {
	Content         string
	SourceReference string
	Score           float64
}

type VectorStore interface {
	EnsureCollection(ctx context.Context, dim int) error
	Upsert(ctx context.Context, chunks []Chunk) error
	SearchWithScore(ctx context.Context, vector []float32, limit int, workspaceID string) ([]ScoredChunk, error)
	DeleteBySource(ctx context.Context, workspaceID, sourceReference string) error
	Reset(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Close() error
}

type vectorStore struct {
	log    *logger.Logger
	cfg    Config
	client *qdrant.Client
}

func NewVectorStore(log *logger.Logger, cfg Config) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	host, port, useTLS, err := cfg.endpoint()
	if err != nil {
		return nil, err
	}

	grpcOptions := []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMessageSize),
			grpc.MaxCallSendMsgSize(maxMessageSize),
		),
	}
	if !useTLS {
		grpcOptions = append(grpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:        host,
		Port:        port,
		UseTLS:      useTLS,
		APIKey:      cfg.APIKey,
		GrpcOptions: grpcOptions,
	})
	if err != nil {
		return nil, opErr("connect", OperationErrorTransportFailed, "create qdrant client failed", err)
	}

	s := &vectorStore{
		log:    log.With("service", "QdrantVectorStore"),
		cfg:    cfg,
		client: client,
	}

	if err := s.HealthCheck(context.Background()); err != nil {
		_ = client.Close()
		return nil, err
	}

	s.log.Info(
		"Qdrant vector store connected",
		"host", host,
		"port", port,
		"tls", useTLS,
		"collection", cfg.Collection,
	)
	return s, nil
}

// EnsureCollection creates the collection with cosine distance when it does
// not exist yet, and verifies the vector size when it does. Safe to call on
// every ingest.
func (s *vectorStore) EnsureCollection(ctx context.Context, dim int) error {
	const op = "ensure_collection"
	if dim <= 0 {
		return opErr(op, OperationErrorValidation, fmt.Sprintf("invalid vector dim %d", dim), nil)
	}

	var existingDim uint64
	exists := true
	err := s.withRetry(ctx, op, func(ctx context.Context) error {
		info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = info != nil
		existingDim = info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		return nil
	})
	if err != nil {
		return err
	}

	if exists {
		if existingDim != 0 && existingDim != uint64(dim) {
			return opErr(op, OperationErrorValidation, fmt.Sprintf(
				"collection %q vector size mismatch: expected=%d actual=%d",
				s.cfg.Collection, dim, existingDim,
			), nil)
		}
		return nil
	}

	err = s.withRetry(ctx, op, func(ctx context.Context) error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		// Racing ingests may create the collection between the existence
		// check and here.
		var oe *OperationError
		if errors.As(err, &oe) && oe.GRPCCode == codes.AlreadyExists {
			return nil
		}
		return err
	}

	s.log.Info("Qdrant collection created", "collection", s.cfg.Collection, "dim", dim)
	return nil
}

func (s *vectorStore) Upsert(ctx context.Context, chunks []Chunk) error {
	const op = "upsert"
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.WorkspaceID) == "" {
			return opErr(op, OperationErrorValidation, "chunk workspace_id is required", nil)
		}
		if strings.TrimSpace(c.SourceReference) == "" {
			return opErr(op, OperationErrorValidation, "chunk source_reference is required", nil)
		}
		if len(c.Vector) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf(
				"chunk %s/%s#%d has an empty vector", c.WorkspaceID, c.SourceReference, c.Index,
			), nil)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(c.WorkspaceID, c.SourceReference, c.Index)),
			Vectors: qdrant.NewVectors(c.Vector...),
			Payload: map[string]*qdrant.Value{
				PayloadContentKey:   {Kind: &qdrant.Value_StringValue{StringValue: c.Content}},
				PayloadWorkspaceKey: {Kind: &qdrant.Value_StringValue{StringValue: c.WorkspaceID}},
				PayloadSourceKey:    {Kind: &qdrant.Value_StringValue{StringValue: c.SourceReference}},
				PayloadChunkKey:     {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(c.Index)}},
			},
		})
	}

	return s.withRetry(ctx, op, func(ctx context.Context) error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.cfg.Collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	})
}

func (s *vectorStore) SearchWithScore(ctx context.Context, vector []float32, limit int, workspaceID string) ([]ScoredChunk, error) {
	const op = "search"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if strings.TrimSpace(workspaceID) == "" {
		return nil, opErr(op, OperationErrorValidation, "workspace_id required", nil)
	}
	if limit <= 0 {
		limit = 10
	}

	var results []*qdrant.ScoredPoint
	err := s.withRetry(ctx, op, func(ctx context.Context) error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.cfg.Collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         workspaceFilter(workspaceID),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]ScoredChunk, 0, len(results))
	for _, p := range results {
		out = append(out, ScoredChunk{
			Content:         payloadString(p.GetPayload(), PayloadContentKey),
			SourceReference: payloadString(p.GetPayload(), PayloadSourceKey),
			Score:           float64(p.GetScore()),
		})
	}
	return out, nil
}

func (s *vectorStore) DeleteBySource(ctx context.Context, workspaceID, sourceReference string) error {
	const op = "delete_by_source"
	if strings.TrimSpace(workspaceID) == "" {
		return opErr(op, OperationErrorValidation, "workspace_id required", nil)
	}
	if strings.TrimSpace(sourceReference) == "" {
		return opErr(op, OperationErrorValidation, "source_reference required", nil)
	}

	return s.withRetry(ctx, op, func(ctx context.Context) error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.cfg.Collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: sourceFilter(workspaceID, sourceReference),
				},
			},
			Wait: qdrant.PtrOf(true),
		})
		return err
	})
}

// Reset drops the collection. The next ingest recreates it via
// EnsureCollection.
func (s *vectorStore) Reset(ctx context.Context) error {
	const op = "reset"
	err := s.withRetry(ctx, op, func(ctx context.Context) error {
		return s.client.DeleteCollection(ctx, s.cfg.Collection)
	})
	if err != nil {
		var oe *OperationError
		if errors.As(err, &oe) && oe.GRPCCode == codes.NotFound {
			return nil
		}
		return err
	}
	s.log.Info("Qdrant collection dropped", "collection", s.cfg.Collection)
	return nil
}

func (s *vectorStore) HealthCheck(ctx context.Context) error {
	const op = "health_check"
	return s.withRetry(ctx, op, func(ctx context.Context) error {
		_, err := s.client.HealthCheck(ctx)
		return err
	})
}

func (s *vectorStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// withRetry runs fn with a per-attempt timeout, retrying transient gRPC
// failures with jittered exponential backoff.
func (s *vectorStore) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := retryBaseDelay

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctxutil.Default(ctx), requestTimeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransient(err) {
			return classifyGRPCError(op, err)
		}
		if attempt == retryAttempts {
			break
		}

		s.log.Debug(
			"retrying qdrant operation",
			"op", op,
			"attempt", attempt,
			"max_attempts", retryAttempts,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return classifyGRPCError(op, ctx.Err())
		case <-time.After(httpx.JitterSleep(backoff)):
			backoff *= 2
		}
	}
	return classifyGRPCError(op, lastErr)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

func classifyGRPCError(op string, err error) error {
	if err == nil {
		return nil
	}
	grpcCode := codes.Unknown
	if st, ok := status.FromError(err); ok {
		grpcCode = st.Code()
	}
	code := OperationErrorQueryFailed
	switch {
	case errors.Is(err, context.DeadlineExceeded) || grpcCode == codes.DeadlineExceeded:
		code = OperationErrorTimeout
	case grpcCode == codes.Unavailable:
		code = OperationErrorTransportFailed
	}
	return &OperationError{
		Code:      code,
		Operation: op,
		GRPCCode:  grpcCode,
		Cause:     err,
	}
}

// pointID derives a stable UUID per chunk so re-ingesting a source
// overwrites its previous points instead of duplicating them.
func pointID(workspaceID, sourceReference string, index int) string {
	seed := fmt.Sprintf("%s|%s|%d", workspaceID, sourceReference, index)
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(seed)).String()
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if payload == nil {
		return ""
	}
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	return v.GetStringValue()
}
