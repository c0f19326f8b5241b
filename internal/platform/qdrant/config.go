package qdrant

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Config describes how to reach the Qdrant gRPC endpoint. URL uses the
// http/https scheme to decide TLS; the port is the gRPC port (6334), not
// the REST port.
type Config struct {
	URL        string
	Collection string
	APIKey     string
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL        ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL        ConfigErrorCode = "invalid_url"
	ConfigErrorMissingCollection ConfigErrorCode = "missing_collection"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid qdrant config"
	}
	switch e.Code {
	case ConfigErrorMissingURL:
		return "QDRANT_URL is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf(
			"invalid QDRANT_URL=%q; expected absolute URL like http://qdrant:6334",
			e.Value,
		)
	case ConfigErrorMissingCollection:
		return "QDRANT_COLLECTION is required"
	default:
		return "invalid qdrant config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return &ConfigError{Code: ConfigErrorMissingURL}
	}
	parsed, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
		return &ConfigError{
			Code:  ConfigErrorInvalidURL,
			Value: cfg.URL,
			Cause: err,
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Value: cfg.URL}
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return &ConfigError{Code: ConfigErrorMissingCollection}
	}
	return nil
}

// endpoint splits the configured URL into the pieces the gRPC client wants.
func (c Config) endpoint() (host string, port int, useTLS bool, err error) {
	parsed, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil {
		return "", 0, false, &ConfigError{Code: ConfigErrorInvalidURL, Value: c.URL, Cause: err}
	}
	host = parsed.Hostname()
	useTLS = parsed.Scheme == "https"
	port = 6334
	if raw := parsed.Port(); raw != "" {
		parsedPort, convErr := strconv.Atoi(raw)
		if convErr != nil || parsedPort <= 0 || parsedPort > 65535 {
			return "", 0, false, &ConfigError{Code: ConfigErrorInvalidURL, Value: c.URL, Cause: convErr}
		}
		port = parsedPort
	}
	return host, port, useTLS, nil
}
