package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/datafirst-hq/aidly-backend/internal/app"
	"github.com/datafirst-hq/aidly-backend/internal/data/db"
	"github.com/datafirst-hq/aidly-backend/internal/data/repos"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

// One-shot sweep of expired and long-inactive auth tokens, for cron jobs
// and operators who want the sweep outside the API process.
func main() {
	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cleanup-tokens: init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := app.LoadConfig(log)

	dbService, err := db.New(log)
	if err != nil {
		log.Error("init database", "error", err)
		os.Exit(1)
	}
	defer dbService.Close()

	auth := services.NewAuthService(
		log,
		repos.NewUserRepo(dbService.DB(), log),
		repos.NewRefreshTokenRepo(dbService.DB(), log),
		repos.NewWidgetTokenRepo(dbService.DB(), log),
		services.AuthConfig{
			SecretKey:  cfg.SecretKey,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
			WidgetTTL:  cfg.WidgetTTL,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := auth.CleanupTokens(ctx)
	if err != nil {
		log.Error("token cleanup failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("expired_deleted=%d inactive_deleted=%d\n", res.ExpiredDeleted, res.InactiveDeleted)
}
