// Package cli provides common CLI initialization utilities shared by
// cmd/txlens, cmd/txlens-worker and cmd/txlens-import.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"txlens/internal/amqp"
	"txlens/internal/categorizer"
	"txlens/internal/config"
	applog "txlens/internal/log"
	"txlens/internal/services"
	"txlens/internal/storage"
)

// SetupLogger installs a text handler at the given level (debug, info, warn,
// error) as the default logger and returns it.
func SetupLogger(level string) *applog.Logger {
	lvl := applog.ParseLevel(level)
	logger := applog.New(applog.Config{
		Level:     lvl,
		Component: applog.ComponentApp,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}),
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *slog.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// LoadCategorizer returns the rules from path, or the built-in rules when
// path is empty. A broken rules file is fatal.
func LoadCategorizer(logger *slog.Logger, path string) *categorizer.Categorizer {
	if path == "" {
		return categorizer.Default()
	}
	c, err := categorizer.LoadFile(path)
	if err != nil {
		logger.Error("Failed to load category rules", "error", err, "path", path)
		os.Exit(1)
	}
	logger.Info("Category rules loaded", "path", path, "rules", len(c.Rules()))
	return c
}

// InitAMQP connects to the broker when AMQP_URL is set. Connection failures
// are logged and the process continues without events.
func InitAMQP(logger *slog.Logger, cfg *config.Config) *amqp.Client {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP_URL not set, view change events disabled")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to connect to AMQP, continuing without events", "error", err)
		return nil
	}
	logger.Info("AMQP connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// NewDashboard wires the dashboard service from configuration.
func NewDashboard(logger *slog.Logger, cfg *config.Config, repo *storage.SQLiteRepository, publisher *amqp.Client) *services.Dashboard {
	opts := services.Options{
		Categorizer:  LoadCategorizer(logger, cfg.CategoryRulesFile),
		Mapping:      cfg.ColumnMapping(),
		TopMerchants: cfg.TopMerchants,
		ExportPath:   cfg.ExportPath,
	}
	// Assigning a nil *amqp.Client would give a non-nil interface.
	if publisher != nil {
		opts.Publisher = publisher
	}
	return services.NewDashboard(repo, opts)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup()
		}

		cancel()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-time.After(2 * time.Second):
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
