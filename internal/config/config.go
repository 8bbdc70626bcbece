// Package config provides configuration management for the ops-worker.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/kneutral-org/ops-worker/internal/lock"
	"github.com/kneutral-org/ops-worker/internal/metrics"
)

const (
	// DefaultRetentionInterval is how often the log retention job runs.
	DefaultRetentionInterval = time.Hour

	// DefaultRetentionMaxAge is how long log entries are kept.
	DefaultRetentionMaxAge = 30 * 24 * time.Hour
)

// Config holds the application configuration.
type Config struct {
	// Port is the HTTP server port.
	Port string

	// DatabaseURL is the PostgreSQL connection string for the log store.
	// Empty means the in-memory store is used.
	DatabaseURL string

	// LogLevel is the zerolog level name.
	LogLevel string

	// LogPretty enables console output instead of JSON.
	LogPretty bool

	// MetricsPath is where Prometheus metrics are served.
	MetricsPath string

	// Lock configures the advisory lock guard.
	Lock lock.Config

	// RetentionInterval is how often the retention job runs. Zero disables it.
	RetentionInterval time.Duration

	// RetentionMaxAge is the age after which log entries are deleted.
	RetentionMaxAge time.Duration
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	cfg := &Config{
		Port:              getEnvOrDefault("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		LogPretty:         getEnvBoolOrDefault("LOG_PRETTY", false),
		MetricsPath:       getEnvOrDefault("METRICS_PATH", metrics.DefaultPath),
		RetentionInterval: getEnvDurationOrDefault("RETENTION_INTERVAL", DefaultRetentionInterval),
		RetentionMaxAge:   getEnvDurationOrDefault("RETENTION_MAX_AGE", DefaultRetentionMaxAge),
		Lock: lock.Config{
			Backend:          lock.Backend(getEnvOrDefault("LOCK_BACKEND", string(lock.BackendPostgres))),
			StatementTimeout: getEnvDurationOrDefault("LOCK_STATEMENT_TIMEOUT", lock.DefaultStatementTimeout),
			RedisTTL:         getEnvDurationOrDefault("LOCK_REDIS_TTL", lock.DefaultRedisTTL),
		},
	}

	// The lock service defaults to the log database.
	switch cfg.Lock.Backend {
	case lock.BackendRedis:
		cfg.Lock.DSN = os.Getenv("LOCK_REDIS_URL")
	case lock.BackendFile:
		cfg.Lock.DSN = os.Getenv("LOCK_DIR")
	default:
		cfg.Lock.DSN = getEnvOrDefault("LOCK_DATABASE_URL", cfg.DatabaseURL)
	}

	return cfg
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable value as bool or the default if not set or invalid.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault returns the environment variable value as a duration or the default if not set or invalid.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
