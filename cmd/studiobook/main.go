package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/studiobook/adapter/cli"
	"github.com/felixgeelhaar/studiobook/internal/app"
	"github.com/felixgeelhaar/studiobook/pkg/config"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
)

func main() {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Version == "" || cfg.Version == "dev" {
		cfg.Version = cli.Version
	}

	logger := observability.NewLogger(observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, cfg.Version))
	slog.SetDefault(logger)
	cli.SetLogger(logger)

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// In development the CLI still offers version and help without a database.
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
		cli.SetApp(nil)
	} else {
		defer container.Close()
		cli.SetApp(cli.NewApp(cfg, container))
	}

	cli.Execute(ctx)
}
