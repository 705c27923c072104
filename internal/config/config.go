package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"txlens/internal/ingest"
)

type Config struct {
	// HTTP Server
	Port        string
	MaxUploadMB int

	// Database
	SQLiteDBPath string

	// Dashboard
	ExportPath        string
	CategoryRulesFile string
	TopMerchants      int
	LogLevel          string

	// Input headers
	ColumnDate        string
	ColumnDescription string
	ColumnCategory    string
	ColumnAmount      string

	// AMQP (optional; empty URL disables events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Worker
	SyncInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8081"),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 10),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/txlens.db"),

		ExportPath:        getEnv("EXPORT_PATH", "filtered_transactions.csv"),
		CategoryRulesFile: getEnv("CATEGORY_RULES_FILE", ""),
		TopMerchants:      getEnvInt("TOP_MERCHANTS", 5),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),

		ColumnDate:        getEnv("COLUMN_DATE", "Date"),
		ColumnDescription: getEnv("COLUMN_DESCRIPTION", "Description"),
		ColumnCategory:    getEnv("COLUMN_CATEGORY", "Category"),
		ColumnAmount:      getEnv("COLUMN_AMOUNT", "Amount"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "txlens"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "view_changed"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transactions"),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", 5*time.Minute),
	}

	return cfg
}

// ColumnMapping returns the configured input headers.
func (c *Config) ColumnMapping() ingest.ColumnMapping {
	return ingest.ColumnMapping{
		Date:        c.ColumnDate,
		Description: c.ColumnDescription,
		Category:    c.ColumnCategory,
		Amount:      c.ColumnAmount,
	}
}

// AMQPEnabled reports whether view change events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.MaxUploadMB < 1 || c.MaxUploadMB > 1024 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %dMB: must be between 1 and 1024", c.MaxUploadMB))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.ExportPath == "" {
		errors = append(errors, "export path cannot be empty")
	}

	if c.CategoryRulesFile != "" {
		if _, err := os.Stat(c.CategoryRulesFile); err != nil {
			errors = append(errors, fmt.Sprintf("category rules file not readable: %s", c.CategoryRulesFile))
		}
	}

	if c.TopMerchants < 1 || c.TopMerchants > 100 {
		errors = append(errors, fmt.Sprintf("invalid top merchants %d: must be between 1 and 100", c.TopMerchants))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	columns := map[string]string{}
	for _, col := range []struct{ key, value string }{
		{"COLUMN_DATE", c.ColumnDate},
		{"COLUMN_DESCRIPTION", c.ColumnDescription},
		{"COLUMN_CATEGORY", c.ColumnCategory},
		{"COLUMN_AMOUNT", c.ColumnAmount},
	} {
		if col.value == "" {
			errors = append(errors, fmt.Sprintf("%s cannot be empty", col.key))
			continue
		}
		if other, dup := columns[col.value]; dup {
			errors = append(errors, fmt.Sprintf("%s and %s both map to header '%s'", other, col.key, col.value))
			continue
		}
		columns[col.value] = col.key
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker runs Validate plus the checks only the mirror worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string
	if err := c.Validate(); err != nil {
		errors = append(errors, strings.TrimPrefix(err.Error(), "configuration validation failed:\n- "))
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the sheets mirror")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME cannot be empty")
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
