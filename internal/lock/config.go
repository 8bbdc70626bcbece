package lock

import (
	"fmt"
	"time"
)

// Backend names a lock service implementation.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
	BackendFile     Backend = "file"
)

// DefaultRedisTTL is the safety expiry of a Redis lock whose holder died without releasing it.
const DefaultRedisTTL = 15 * time.Minute

// Config describes how to reach the lock service.
type Config struct {
	// Backend selects the implementation. Empty means postgres.
	Backend Backend

	// DSN is the postgres connection string, the redis:// URL, or the lock
	// directory for the file backend. Empty means not configured.
	DSN string

	// StatementTimeout bounds each lock service round trip.
	StatementTimeout time.Duration

	// RedisTTL is the safety expiry for the redis backend.
	RedisTTL time.Duration
}

// NewDialer returns the dialer for cfg.
// Returns ErrNotConfigured if cfg has no DSN.
func NewDialer(cfg Config) (Dialer, error) {
	if cfg.DSN == "" {
		return nil, ErrNotConfigured
	}

	switch cfg.Backend {
	case "", BackendPostgres:
		return NewPostgresDialer(cfg.DSN), nil
	case BackendRedis:
		ttl := cfg.RedisTTL
		if ttl <= 0 {
			ttl = DefaultRedisTTL
		}
		return NewRedisDialer(cfg.DSN, ttl)
	case BackendFile:
		return NewFileDialer(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
