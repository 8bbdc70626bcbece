package lock

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// pgConn is the subset of *pgx.Conn used by a postgres session.
type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// PostgresDialer opens a dedicated connection per session and uses
// session-scoped advisory locks.
type PostgresDialer struct {
	dsn string
}

// NewPostgresDialer creates a dialer for the given connection string.
func NewPostgresDialer(dsn string) *PostgresDialer {
	return &PostgresDialer{dsn: dsn}
}

// Dial implements Dialer. The connection is not pooled.
func (d *PostgresDialer) Dial(ctx context.Context) (Session, error) {
	conn, err := pgx.Connect(ctx, d.dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &postgresSession{conn: conn}, nil
}

type postgresSession struct {
	conn pgConn
}

// TryLock uses pg_try_advisory_lock, which returns immediately.
func (s *postgresSession) TryLock(ctx context.Context, key int64) (bool, error) {
	var locked bool
	if err := s.conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&locked); err != nil {
		return false, fmt.Errorf("try advisory lock %d: %w", key, err)
	}
	return locked, nil
}

func (s *postgresSession) Unlock(ctx context.Context, key int64) error {
	var unlocked bool
	if err := s.conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&unlocked); err != nil {
		return fmt.Errorf("advisory unlock %d: %w", key, err)
	}
	if !unlocked {
		return fmt.Errorf("advisory unlock %d: %w", key, ErrLockNotHeld)
	}
	return nil
}

// Close ends the database session; postgres drops any advisory locks still held by it.
func (s *postgresSession) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
