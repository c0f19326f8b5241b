package services

import "context"

// Embedder turns text into fixed-dimension vectors. The dimension is decided
// by the configured model and discovered at startup with a probe string, so
// callers never hard-code it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Chat produces one assistant reply from a system prompt and a user turn.
// Implementations are shared across requests and safe for concurrent use.
type Chat interface {
	Generate(ctx context.Context, system, user string, temperature float64) (string, error)
	Model() string
}

// EmbeddingProbe is the fixed string embedded once at startup to discover
// the vector dimension of the configured model.
const EmbeddingProbe = "hello world"

// DiscoverEmbeddingDim embeds the probe string and reports the model's
// vector size.
func DiscoverEmbeddingDim(ctx context.Context, embedder Embedder) (int, error) {
	vec, err := embedder.Embed(ctx, EmbeddingProbe)
	if err != nil {
		return 0, err
	}
	return len(vec), nil
}
