package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
)

// FileDialer locks files in a directory with flock(2).
// Only processes on the same host contend; meant for single-host deployments.
type FileDialer struct {
	dir string
}

// NewFileDialer creates a dialer that keeps lock files in dir.
func NewFileDialer(dir string) *FileDialer {
	return &FileDialer{dir: dir}
}

// Dial implements Dialer.
func (d *FileDialer) Dial(ctx context.Context) (Session, error) {
	if err := os.MkdirAll(d.dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &fileSession{dir: d.dir, held: make(map[int64]*flock.Flock)}, nil
}

type fileSession struct {
	dir  string
	held map[int64]*flock.Flock
}

func (s *fileSession) path(key int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(key, 10)+".lock")
}

func (s *fileSession) TryLock(ctx context.Context, key int64) (bool, error) {
	if _, ok := s.held[key]; ok {
		return true, nil
	}

	fl := flock.New(s.path(key))
	locked, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock: %w", err)
	}
	if !locked {
		return false, nil
	}
	s.held[key] = fl
	return true, nil
}

func (s *fileSession) Unlock(ctx context.Context, key int64) error {
	fl, ok := s.held[key]
	if !ok {
		return ErrLockNotHeld
	}
	delete(s.held, key)

	// The lock file stays on disk so every contender locks the same inode.
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Close releases anything still held, matching a database session ending.
func (s *fileSession) Close(ctx context.Context) error {
	var firstErr error
	for key, fl := range s.held {
		if err := fl.Unlock(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to release lock %d: %w", key, err)
		}
		delete(s.held, key)
	}
	return firstErr
}
