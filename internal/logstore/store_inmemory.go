package logstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of Store for testing and development.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewInMemoryStore creates a new in-memory log store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// List retrieves log entries, newest first.
func (s *InMemoryStore) List(ctx context.Context, params ListParams) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entry, 0)
	for _, entry := range s.entries {
		if params.Category != "" && entry.Category != params.Category {
			continue
		}
		if params.Level != "" && entry.Level != params.Level {
			continue
		}
		result = append(result, copyEntry(entry))
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit := normalizeLimit(params.Limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Create stores a copy of the entry.
func (s *InMemoryStore) Create(ctx context.Context, entry *Entry) (*Entry, error) {
	if err := prepareEntry(entry); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, copyEntry(entry))
	return entry, nil
}

// DeleteOlderThan removes entries created before cutoff.
func (s *InMemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var removed int64
	for _, entry := range s.entries {
		if entry.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	s.entries = kept
	return removed, nil
}

// Len returns the number of stored entries (for testing).
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func copyEntry(entry *Entry) *Entry {
	c := *entry
	if entry.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(entry.Metadata))
		for k, v := range entry.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
