package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

// String reads a string environment variable, falling back to def when the
// variable is unset. Reads are logged at debug level when log is non-nil.
func String(key, def string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", def)
		}
		return def
	}
	if log != nil {
		log.Debug("Environment variable found, using environment", "value", val)
	}
	return val
}

// Int reads an integer environment variable, falling back to def when the
// variable is unset or unparsable.
func Int(key string, def int, log *logger.Logger) int {
	if log != nil {
		log = log.With("env_var", key)
	}
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", def)
		}
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as int, using default", "provided", raw, "default", def, "error", err)
		}
		return def
	}
	return i
}

// Bool reads a boolean environment variable. Accepts the forms strconv
// understands plus "yes"/"no" in any case.
func Bool(key string, def bool, log *logger.Logger) bool {
	if log != nil {
		log = log.With("env_var", key)
	}
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", def)
		}
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y":
		return true
	case "no", "n":
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as bool, using default", "provided", raw, "default", def, "error", err)
		}
		return def
	}
	return b
}

// Duration reads an integer environment variable and scales it by unit,
// e.g. Duration("ACCESS_TOKEN_EXPIRE_MINUTES", 60, time.Minute, log).
func Duration(key string, def int, unit time.Duration, log *logger.Logger) time.Duration {
	return time.Duration(Int(key, def, log)) * unit
}

// StringSlice reads a comma-separated environment variable, trimming
// whitespace around each element and dropping empties.
func StringSlice(key string, def []string, log *logger.Logger) []string {
	raw := String(key, "", log)
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
