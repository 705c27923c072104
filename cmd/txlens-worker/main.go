package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"txlens/internal/amqp"
	"txlens/internal/cli"
	applog "txlens/internal/log"
	gsheet "txlens/internal/sheets/google"
	"txlens/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(applog.ComponentWorker)
	logger.Info("Starting txlens-worker")

	cfg := cli.LoadAndValidateConfig(logger.Slog())
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger.Slog(), cfg.SQLiteDBPath)
	// The worker only reads the view, so it never publishes.
	dashboard := cli.NewDashboard(logger.Slog(), cfg, repo, nil)
	defer dashboard.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sheetsClient, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	syncWorker := worker.NewSyncWorker(dashboard, sheetsClient)

	// Mirror once at startup so the sheet reflects anything missed while down.
	if err := syncWorker.SyncNow(ctx, amqp.ReasonResync); err != nil {
		logger.Error("Startup sync failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPEnabled() {
		consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer consumer.Close()

		g.Go(func() error {
			return consumer.ConsumeViewChanged(gctx, syncWorker.HandleViewChanged)
		})
	} else {
		logger.Info("AMQP_URL not set, relying on periodic sync only",
			"interval", cfg.SyncInterval)
	}

	g.Go(func() error {
		return syncWorker.Run(gctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete",
		"last_sync", syncWorker.LastSync(),
		"last_rows", syncWorker.LastRows())
}
