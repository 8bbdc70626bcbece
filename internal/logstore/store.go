// Package logstore provides persistence for application log entries.
package logstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit is the number of entries returned when no limit is given.
const DefaultListLimit = 100

// MaxListLimit caps a single read.
const MaxListLimit = 1000

// ErrInvalidEntry is returned when an entry is missing required fields.
var ErrInvalidEntry = errors.New("invalid log entry")

// Entry is a single stored log record.
type Entry struct {
	ID        uuid.UUID              `json:"id"`
	Level     string                 `json:"level"`
	Category  string                 `json:"category"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"createdAt"`
}

// ListParams filters a read. Empty strings match everything.
type ListParams struct {
	Limit    int
	Category string
	Level    string
}

// Store defines the interface for log persistence.
type Store interface {
	// List returns entries matching params, newest first.
	List(ctx context.Context, params ListParams) ([]*Entry, error)

	// Create stores an entry, assigning ID and CreatedAt when unset.
	Create(ctx context.Context, entry *Entry) (*Entry, error)

	// DeleteOlderThan removes entries created before cutoff and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// normalizeLimit applies the default and the cap.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func prepareEntry(entry *Entry) error {
	if entry == nil || entry.Level == "" || entry.Message == "" {
		return ErrInvalidEntry
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]interface{}{}
	}
	return nil
}
