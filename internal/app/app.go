package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/datafirst-hq/aidly-backend/internal/data/db"
	"github.com/datafirst-hq/aidly-backend/internal/http"
	"github.com/datafirst-hq/aidly-backend/internal/observability"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *db.Service
	Clients  Clients
	Repos    Repos
	Services Services
	Server   *http.Server

	cron         *cron.Cron
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	if err := os.MkdirAll(cfg.DataDirectory, 0o755); err != nil {
		log.Sync()
		return nil, fmt.Errorf("data directory %q: %w", cfg.DataDirectory, err)
	}
	if err := os.MkdirAll(cfg.LogsDirectory, 0o755); err != nil {
		log.Sync()
		return nil, fmt.Errorf("logs directory %q: %w", cfg.LogsDirectory, err)
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "aidly",
		Environment: os.Getenv("ENVIRONMENT"),
		Version:     os.Getenv("SERVICE_VERSION"),
	})

	dbService, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(dbService.DB()); err != nil {
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	// The embedding dimension depends on the configured model, so probe it
	// once and size the collection from the answer.
	probeCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	dim, err := services.DiscoverEmbeddingDim(probeCtx, clients.Embedder)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, fmt.Errorf("discover embedding dimension: %w", err)
	}
	if err := clients.VectorStore.EnsureCollection(probeCtx, dim); err != nil {
		clients.Close()
		log.Sync()
		return nil, fmt.Errorf("ensure vector collection: %w", err)
	}
	log.Info("Vector collection ready", "dim", dim)

	reposet := wireRepos(dbService.DB(), log)
	serviceset, err := wireServices(log, cfg, reposet, clients)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}
	handlerset := wireHandlers(log, cfg, dbService, serviceset)
	middlewareset := wireMiddleware(log, serviceset)
	server := wireRouter(log, cfg, handlerset, middlewareset)

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           dbService,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the periodic cleanup sweep (expired tokens, idle widget
// sessions). Serving does not depend on it; an invalid schedule disables
// the sweep with a warning.
func (a *App) Start() {
	if a == nil || a.cron != nil {
		return
	}
	c := cron.New()
	if _, err := c.AddFunc(a.Cfg.TokenCleanupCron, a.sweep); err != nil {
		a.Log.Warn("Cleanup schedule invalid; sweep disabled",
			"schedule", a.Cfg.TokenCleanupCron, "error", err)
		return
	}
	c.Start()
	a.cron = c
	a.Log.Info("Cleanup sweep scheduled", "schedule", a.Cfg.TokenCleanupCron)
}

func (a *App) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	res, err := a.Services.Auth.CleanupTokens(ctx)
	if err != nil {
		a.Log.Warn("Token cleanup failed", "error", err)
	} else {
		a.Log.Info("Token cleanup finished",
			"expired_deleted", res.ExpiredDeleted,
			"inactive_deleted", res.InactiveDeleted)
	}
	if _, err := a.Services.Widget.CleanupIdleSessions(ctx); err != nil {
		a.Log.Warn("Idle session cleanup failed", "error", err)
	}
}

// Run serves HTTP until ctx is canceled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Server.Run(":" + a.Cfg.Port)
	}()
	a.Log.Info("Server listening", "port", a.Cfg.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cron != nil {
		a.cron.Stop()
		a.cron = nil
	}
	if a.Services.Interactions != nil {
		_ = a.Services.Interactions.Close()
	}
	a.Clients.Close()
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
