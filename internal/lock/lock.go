// Package lock provides distributed locking mechanisms for coordinating
// work across multiple service instances.
package lock

import (
	"context"
	"errors"
	"time"
)

// Common errors for distributed locking operations.
var (
	// ErrLockNotHeld is returned when trying to release a lock that is not held.
	ErrLockNotHeld = errors.New("lock not held by this session")

	// ErrEmptyLabel is returned when a guarded call is made without a label.
	ErrEmptyLabel = errors.New("lock label must not be empty")

	// ErrNotConfigured is reported when no lock service is configured.
	ErrNotConfigured = errors.New("lock service not configured")

	// ErrUnknownBackend is returned when the configured backend is not supported.
	ErrUnknownBackend = errors.New("unknown lock backend")
)

// Session is a single, dedicated connection to a lock service.
// A session is owned by exactly one guarded call and is never shared.
type Session interface {
	// TryLock attempts to acquire the named lock without waiting.
	// Returns true if the lock was acquired, false if it's already held elsewhere.
	TryLock(ctx context.Context, key int64) (bool, error)

	// Unlock releases the named lock held by this session.
	// Returns ErrLockNotHeld if the session did not hold it.
	Unlock(ctx context.Context, key int64) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// HoldLimiter is implemented by sessions whose locks expire on their own.
// MaxHold is how long a lock stays held after TryLock succeeds.
type HoldLimiter interface {
	MaxHold() time.Duration
}

// Dialer opens new sessions against a lock service.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Session, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Session, error) {
	return f(ctx)
}
