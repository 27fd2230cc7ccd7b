package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/legal-letters/internal/app/letterworker"
	"github.com/magabrotheeeer/legal-letters/internal/config"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.SetupLogger(cfg.Env)

	logger.Info("starting letter worker", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := letterworker.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize letter worker", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("letter worker stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("letter worker stopped gracefully")
}
