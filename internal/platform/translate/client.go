package translate

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

// Client wraps a LibreTranslate endpoint. When no endpoint is configured the
// client is disabled: Detect reports English and Translate passes text through.
type Client interface {
	Enabled() bool
	Detect(ctx context.Context, text string) (string, error)
	Translate(ctx context.Context, text string, source string, target string) (string, error)
}

type client struct {
	log     *logger.Logger
	baseURL string
	apiKey  string

	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	log = log.With("service", "TranslateClient")

	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("TRANSLATE_URL")), "/")
	if baseURL == "" {
		log.Info("Translation disabled; TRANSLATE_URL not set")
		return &disabledClient{}, nil
	}

	timeoutSec := 10
	if v := os.Getenv("TRANSLATE_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 2
	if v := os.Getenv("TRANSLATE_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:        log,
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(os.Getenv("TRANSLATE_API_KEY")),
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type disabledClient struct{}

func (d *disabledClient) Enabled() bool { return false }

func (d *disabledClient) Detect(ctx context.Context, text string) (string, error) {
	return "en", nil
}

func (d *disabledClient) Translate(ctx context.Context, text string, source string, target string) (string, error) {
	return text, nil
}

func (c *client) Enabled() bool { return true }

type translateHTTPError struct {
	StatusCode int
	Body       string
}

func (e *translateHTTPError) Error() string {
	return fmt.Sprintf("translate http %d: %s", e.StatusCode, e.Body)
}

func (e *translateHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) do(ctx context.Context, path string, body map[string]any, out any) error {
	if c.apiKey != "" {
		body["api_key"] = c.apiKey
	}

	backoff := 500 * time.Millisecond

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("translate decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 5*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("Translate request retrying",
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

func (c *client) doOnce(ctx context.Context, path string, body map[string]any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &translateHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

type detection struct {
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

func (c *client) Detect(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "en", nil
	}

	var resp []detection
	if err := c.do(ctx, "/detect", map[string]any{"q": text}, &resp); err != nil {
		return "", err
	}
	if len(resp) == 0 || strings.TrimSpace(resp[0].Language) == "" {
		return "", fmt.Errorf("translate detect returned no languages")
	}

	best := resp[0]
	for _, d := range resp[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return strings.TrimSpace(best.Language), nil
}

func (c *client) Translate(ctx context.Context, text string, source string, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = "auto"
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("translate target language required")
	}

	var resp struct {
		TranslatedText string `json:"translatedText"`
	}
	body := map[string]any{
		"q":      text,
		"source": source,
		"target": target,
		"format": "text",
	}
	if err := c.do(ctx, "/translate", body, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.TranslatedText) == "" {
		return "", fmt.Errorf("translate returned empty text")
	}
	return resp.TranslatedText, nil
}
