package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"txlens/internal/cli"
	apphttp "txlens/internal/http"
	applog "txlens/internal/log"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger.Slog())

	repo := cli.InitSQLite(logger.Slog(), cfg.SQLiteDBPath)
	publisher := cli.InitAMQP(logger.Slog(), cfg)
	dashboard := cli.NewDashboard(logger.Slog(), cfg, repo, publisher)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:        ":" + cfg.Port,
		MaxUploadMB: cfg.MaxUploadMB,
		Logger:      logger,
	}, dashboard)

	// Multi-file uploads can take a while on slow links.
	srv.ReadTimeout = 90 * time.Second
	srv.WriteTimeout = 90 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger.Slog(), 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting txlens server",
		"port", cfg.Port,
		"db", cfg.SQLiteDBPath,
		"amqp", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		_ = dashboard.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if err := dashboard.Close(); err != nil {
		logger.Error("Failed to close dashboard", applog.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
