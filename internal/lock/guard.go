package lock

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kneutral-org/ops-worker/internal/metrics"
)

// DefaultStatementTimeout bounds each lock service round trip (acquire, release, close).
const DefaultStatementTimeout = 5 * time.Second

// Reason explains why guarded work did not run.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonEmptyLabel    Reason = "empty_label"
	ReasonUnconfigured  Reason = "unconfigured"
	ReasonConnectFailed Reason = "connect_failed"
	ReasonQueryFailed   Reason = "query_failed"
	ReasonContended     Reason = "contended"
)

// Result is the outcome of a guarded call.
type Result struct {
	// Acquired is true if the work ran under the lock.
	Acquired bool

	// Reason is set when Acquired is false.
	Reason Reason

	// Err is the diagnostic cause of a non-acquisition, if any.
	Err error

	// ReleaseErr is set when the work ran but the lock could not be released cleanly.
	// The session is still closed, which drops session-scoped locks.
	ReleaseErr error
}

// Outcome returns a short label for metrics and logs.
func (r Result) Outcome() string {
	if r.Acquired {
		return "acquired"
	}
	return string(r.Reason)
}

// Guard runs units of work under a named, non-blocking lock.
// Every call uses its own session; a Guard holds no connection between calls.
type Guard struct {
	dialer           Dialer
	logger           zerolog.Logger
	statementTimeout time.Duration
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithStatementTimeout sets the timeout for each acquire, release and close round trip.
// It does not bound the guarded work.
func WithStatementTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.statementTimeout = d
		}
	}
}

// NewGuard creates a guard over the given dialer.
// A nil dialer is the unconfigured state: every call is skipped without contacting anything.
func NewGuard(dialer Dialer, logger zerolog.Logger, opts ...GuardOption) *Guard {
	g := &Guard{
		dialer:           dialer,
		logger:           logger.With().Str("component", "lock-guard").Logger(),
		statementTimeout: DefaultStatementTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewGuardFromConfig builds the dialer for cfg and wraps it in a guard.
// An empty DSN yields an unconfigured guard rather than an error.
func NewGuardFromConfig(cfg Config, logger zerolog.Logger) (*Guard, error) {
	dialer, err := NewDialer(cfg)
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		return nil, err
	}
	if dialer == nil {
		logger.Warn().Msg("lock service not configured, guarded work will be skipped")
	}
	return NewGuard(dialer, logger, WithStatementTimeout(cfg.StatementTimeout)), nil
}

// Configured reports whether the guard has a lock service to talk to.
func (g *Guard) Configured() bool {
	return g.dialer != nil
}

// WithLock runs work at most once, only if the lock for label can be acquired
// immediately. Lock service failures are never returned: they are logged and
// reported through Result. The returned error is the work's own error.
// The lock is released on every exit path from work, including panics.
// On backends whose locks expire, the context passed to work is cancelled
// before the lock can lapse.
func (g *Guard) WithLock(ctx context.Context, label string, work func(ctx context.Context) error) (res Result, err error) {
	logger := g.logger.With().Str("label", label).Logger()

	if label == "" {
		return g.skip(logger, ReasonEmptyLabel, ErrEmptyLabel), nil
	}
	if g.dialer == nil {
		return g.skip(logger, ReasonUnconfigured, ErrNotConfigured), nil
	}

	key := Key(label)
	logger = logger.With().Int64("key", key).Logger()

	session, dialErr := g.dialer.Dial(ctx)
	if dialErr != nil {
		return g.skip(logger, ReasonConnectFailed, dialErr), nil
	}
	defer g.closeSession(ctx, logger, session)

	acquired, lockErr := g.tryLock(ctx, session, key)
	if lockErr != nil {
		return g.skip(logger, ReasonQueryFailed, lockErr), nil
	}
	if !acquired {
		return g.skip(logger, ReasonContended, nil), nil
	}

	metrics.RecordLockAttempt("acquired")
	logger.Debug().Msg("lock acquired")

	workCtx := ctx
	if limit := g.holdBudget(session); limit > 0 {
		var cancel context.CancelFunc
		workCtx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
		logger.Debug().Dur("maxHold", limit).Msg("work bounded by lock expiry")
	}

	res = Result{Acquired: true}
	start := time.Now()
	defer func() {
		metrics.RecordLockWorkDuration(time.Since(start).Seconds())
		if releaseErr := g.release(ctx, session, key); releaseErr != nil {
			res.ReleaseErr = releaseErr
			metrics.RecordLockReleaseFailure()
			logger.Error().Err(releaseErr).Msg("failed to release lock")
			return
		}
		logger.Debug().Msg("lock released")
	}()

	return res, work(workCtx)
}

// holdBudget is how long work may run before an expiring lock could lapse.
// It leaves one statement timeout for the release when the expiry allows it.
// Zero means the lock does not expire.
func (g *Guard) holdBudget(session Session) time.Duration {
	limiter, ok := session.(HoldLimiter)
	if !ok {
		return 0
	}
	maxHold := limiter.MaxHold()
	if maxHold <= 0 {
		return 0
	}
	if maxHold > 2*g.statementTimeout {
		return maxHold - g.statementTimeout
	}
	return maxHold
}

func (g *Guard) tryLock(ctx context.Context, session Session, key int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.statementTimeout)
	defer cancel()
	return session.TryLock(ctx, key)
}

// release and close run detached from the caller's cancellation.
func (g *Guard) release(ctx context.Context, session Session, key int64) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.statementTimeout)
	defer cancel()
	return session.Unlock(ctx, key)
}

func (g *Guard) closeSession(ctx context.Context, logger zerolog.Logger, session Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.statementTimeout)
	defer cancel()
	if err := session.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to close lock session")
	}
}

func (g *Guard) skip(logger zerolog.Logger, reason Reason, cause error) Result {
	metrics.RecordLockAttempt(string(reason))

	event := logger.Debug()
	switch reason {
	case ReasonConnectFailed, ReasonQueryFailed:
		event = logger.Warn()
	case ReasonEmptyLabel:
		event = logger.Error()
	}
	if cause != nil {
		event = event.Err(cause)
	}
	event.Str("reason", string(reason)).Msg("lock not acquired, skipping work")

	return Result{Reason: reason, Err: cause}
}
