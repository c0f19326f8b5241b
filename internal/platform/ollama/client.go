package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/datafirst-hq/aidly-backend/internal/pkg/ctxutil"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/httpx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

// Client talks to a local Ollama daemon for chat and embeddings.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	GenerateText(ctx context.Context, system string, user string, temperature float64) (string, error)
	ChatModel() string
	EmbedModel() string
}

type client struct {
	log        *logger.Logger
	baseURL    string
	model      string
	embedModel string

	chatClient  *http.Client
	embedClient *http.Client

	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	baseURL := strings.TrimSpace(os.Getenv("OLLAMA_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("LOCAL_MODEL"))
	if model == "" {
		model = "llama3.2:latest"
	}

	embedModel := strings.TrimSpace(os.Getenv("EMBEDDING_MODEL"))
	if embedModel == "" {
		embedModel = "nomic-embed-text"
	}

	chatTimeout := envSeconds("OLLAMA_CHAT_TIMEOUT_SECONDS", 60)
	embedTimeout := envSeconds("OLLAMA_EMBED_TIMEOUT_SECONDS", 30)

	maxRetries := 4
	if v := os.Getenv("OLLAMA_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:         log.With("service", "OllamaClient"),
		baseURL:     baseURL,
		model:       model,
		embedModel:  embedModel,
		chatClient:  &http.Client{Timeout: chatTimeout},
		embedClient: &http.Client{Timeout: embedTimeout},
		maxRetries:  maxRetries,
	}, nil
}

func (c *client) ChatModel() string  { return c.model }
func (c *client) EmbedModel() string { return c.embedModel }

func envSeconds(key string, def int) time.Duration {
	secs := def
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			secs = parsed
		}
	}
	return time.Duration(secs) * time.Second
}

type ollamaHTTPError struct {
	StatusCode int
	Body       string
}

func (e *ollamaHTTPError) Error() string {
	return fmt.Sprintf("ollama http %d: %s", e.StatusCode, e.Body)
}

func (e *ollamaHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, httpClient *http.Client, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &ollamaHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, httpClient *http.Client, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, httpClient, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("ollama decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("Ollama request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

// -------------------- Embeddings --------------------

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	req := embedRequest{Model: c.embedModel, Input: clean}

	var resp embedResponse
	if err := c.do(ctx, c.embedClient, "/api/embed", req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(clean) {
		return nil, fmt.Errorf("ollama embeddings count mismatch: requested=%d returned=%d model=%s",
			len(clean), len(resp.Embeddings), c.embedModel)
	}
	for i := range resp.Embeddings {
		if len(resp.Embeddings[i]) == 0 {
			return nil, fmt.Errorf("ollama embedding %d empty: model=%s", i, c.embedModel)
		}
	}
	return resp.Embeddings, nil
}

// -------------------- Chat --------------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

func (c *client) GenerateText(ctx context.Context, system string, user string, temperature float64) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	req := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  chatOptions{Temperature: temperature},
	}

	var resp chatResponse
	if err := c.do(ctx, c.chatClient, "/api/chat", req, &resp); err != nil {
		return "", err
	}

	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", fmt.Errorf("ollama response missing message content: model=%s", c.model)
	}
	return resp.Message.Content, nil
}
