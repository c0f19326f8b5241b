package app

import (
	"time"

	"github.com/datafirst-hq/aidly-backend/internal/pkg/envutil"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

// Config carries the process-level settings the composition root threads
// into services. Platform clients (Gemini, Ollama, translate, ClickUp) read
// their own endpoint variables at construction; the relational DSN lives in
// DATABASE_URL and is read by internal/data/db.
type Config struct {
	Port    string
	IsLocal bool

	SecretKey  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	WidgetTTL  time.Duration

	DataDirectory string
	LogsDirectory string

	CORSOrigins []string

	ChunkSize         int
	ChunkOverlap      int
	SearchK           int
	MaxQuestionLength int

	WidgetSessionsPerBot int
	WidgetSessionIdleTTL time.Duration
	ChatMaxConcurrent    int64

	TokenCleanupCron string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:    envutil.String("PORT", "8080", log),
		IsLocal: envutil.Bool("IS_LOCAL", false, log),

		SecretKey:  envutil.String("SECRET_KEY", "CHANGE_ME", log),
		AccessTTL:  envutil.Duration("ACCESS_TOKEN_EXPIRE_MINUTES", 60, time.Minute, log),
		RefreshTTL: envutil.Duration("REFRESH_TOKEN_EXPIRE_DAYS", 30, 24*time.Hour, log),
		WidgetTTL:  envutil.Duration("WIDGET_TOKEN_EXPIRE_DAYS", 7, 24*time.Hour, log),

		DataDirectory: envutil.String("DATA_DIRECTORY", "data", log),
		LogsDirectory: envutil.String("LOGS_DIRECTORY", "logs", log),

		CORSOrigins: envutil.StringSlice("CORS_ORIGINS", []string{"http://localhost:4200"}, log),

		ChunkSize:         envutil.Int("CHUNK_SIZE", 500, log),
		ChunkOverlap:      envutil.Int("CHUNK_OVERLAP", 0, log),
		SearchK:           envutil.Int("SIMILARITY_SEARCH_K", 1, log),
		MaxQuestionLength: envutil.Int("MAX_QUESTION_LENGTH", 1000, log),

		WidgetSessionsPerBot: envutil.Int("WIDGET_MAX_SESSIONS_PER_BOT", 100, log),
		WidgetSessionIdleTTL: envutil.Duration("WIDGET_SESSION_IDLE_HOURS", 24, time.Hour, log),
		ChatMaxConcurrent:    int64(envutil.Int("CHAT_MAX_CONCURRENT", 32, log)),

		TokenCleanupCron: envutil.String("TOKEN_CLEANUP_CRON", "@hourly", log),
	}
}
