package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/datafirst-hq/aidly-backend/internal/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aidly: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Missing .env is fine; containers inject the environment directly.
	_ = godotenv.Load()

	application, err := app.New()
	if err != nil {
		return err
	}
	defer application.Close()

	application.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}
