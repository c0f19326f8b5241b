package app

import (
	"context"
	"fmt"

	"github.com/datafirst-hq/aidly-backend/internal/pkg/envutil"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
	"github.com/datafirst-hq/aidly-backend/internal/platform/clickup"
	"github.com/datafirst-hq/aidly-backend/internal/platform/gemini"
	"github.com/datafirst-hq/aidly-backend/internal/platform/ollama"
	"github.com/datafirst-hq/aidly-backend/internal/platform/qdrant"
	"github.com/datafirst-hq/aidly-backend/internal/platform/translate"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

type Clients struct {
	Embedder    services.Embedder
	Chat        services.Chat
	VectorStore qdrant.VectorStore
	Translator  translate.Client
	ClickUp     clickup.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	llm, err := wireLLM(log, cfg)
	if err != nil {
		return Clients{}, err
	}

	store, err := qdrant.NewVectorStore(log, qdrant.Config{
		URL:        envutil.String("QDRANT_URL", "http://localhost:6334", log),
		Collection: envutil.String("QDRANT_COLLECTION", "Aidly", log),
		APIKey:     envutil.String("QDRANT_API_KEY", "", log),
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init vector store: %w", err)
	}

	translator, err := translate.NewClient(log)
	if err != nil {
		_ = store.Close()
		return Clients{}, fmt.Errorf("init translate client: %w", err)
	}

	clickupClient, err := clickup.NewClient(log)
	if err != nil {
		_ = store.Close()
		return Clients{}, fmt.Errorf("init clickup client: %w", err)
	}

	return Clients{
		Embedder:    llmEmbedder{llm},
		Chat:        llmChat{llm},
		VectorStore: instrumentVectorStore(store),
		Translator:  translator,
		ClickUp:     clickupClient,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.VectorStore != nil {
		_ = c.VectorStore.Close()
	}
}

// llmClient is the surface Gemini and Ollama share. IS_LOCAL picks which one
// backs the process.
type llmClient interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	GenerateText(ctx context.Context, system string, user string, temperature float64) (string, error)
	ChatModel() string
	EmbedModel() string
}

func wireLLM(log *logger.Logger, cfg Config) (llmClient, error) {
	if cfg.IsLocal {
		c, err := ollama.NewClient(log)
		if err != nil {
			return nil, fmt.Errorf("init ollama client: %w", err)
		}
		log.Info("Using local models", "chat", c.ChatModel(), "embed", c.EmbedModel())
		return c, nil
	}
	c, err := gemini.NewClient(log)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	log.Info("Using hosted models", "chat", c.ChatModel(), "embed", c.EmbedModel())
	return c, nil
}

type llmEmbedder struct{ c llmClient }

func (e llmEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	return vecs[0], nil
}

func (e llmEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.c.Embed(ctx, texts)
}

func (e llmEmbedder) Model() string { return e.c.EmbedModel() }

type llmChat struct{ c llmClient }

func (ch llmChat) Generate(ctx context.Context, system, user string, temperature float64) (string, error) {
	return ch.c.GenerateText(ctx, system, user, temperature)
}

func (ch llmChat) Model() string { return ch.c.ChatModel() }
