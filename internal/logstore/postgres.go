package logstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/kneutral-org/ops-worker/internal/metrics"
)

// Open opens a database/sql handle backed by pgx and verifies connectivity.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// List retrieves log entries, newest first.
func (s *PostgresStore) List(ctx context.Context, params ListParams) ([]*Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDatabaseQuery("list_logs", time.Since(start).Seconds())
	}()

	var (
		conditions []string
		args       []interface{}
	)
	if params.Category != "" {
		args = append(args, params.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if params.Level != "" {
		args = append(args, params.Level)
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)))
	}

	query := `SELECT id, level, category, message, metadata, created_at FROM logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, normalizeLimit(params.Limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry := &Entry{}
		var category sql.NullString
		var metadataJSON []byte

		if err := rows.Scan(
			&entry.ID, &entry.Level, &category, &entry.Message, &metadataJSON, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}

		entry.Category = category.String
		entry.Metadata = map[string]interface{}{}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for log %s: %w", entry.ID, err)
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}

	return entries, nil
}

// Create inserts a log entry.
func (s *PostgresStore) Create(ctx context.Context, entry *Entry) (*Entry, error) {
	if err := prepareEntry(entry); err != nil {
		return nil, err
	}

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO logs (id, level, category, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		entry.ID, entry.Level, entry.Category, entry.Message, metadataJSON, entry.CreatedAt,
	)
	metrics.RecordDatabaseQuery("insert_log", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("insert log: %w", err)
	}

	return entry, nil
}

// DeleteOlderThan removes entries created before cutoff.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	result, err := s.db.ExecContext(ctx, "DELETE FROM logs WHERE created_at < $1", cutoff)
	metrics.RecordDatabaseQuery("delete_logs", time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("delete logs: %w", err)
	}
	return result.RowsAffected()
}
