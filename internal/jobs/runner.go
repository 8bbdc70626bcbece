// Package jobs runs recurring work so that each run executes on at most one
// worker instance at a time.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kneutral-org/ops-worker/internal/lock"
	"github.com/kneutral-org/ops-worker/internal/logging"
	"github.com/kneutral-org/ops-worker/internal/logstore"
	"github.com/kneutral-org/ops-worker/internal/metrics"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// CategoryJobs is the log category used for job run records.
const CategoryJobs = "jobs"

var (
	// ErrInvalidJob is returned when registering a job without a name, interval or function.
	ErrInvalidJob = errors.New("invalid job")

	// ErrRunnerStarted is returned when registering after Start.
	ErrRunnerStarted = errors.New("runner already started")

	// ErrJobPanicked wraps the value of a panic raised by a job.
	ErrJobPanicked = errors.New("job panicked")
)

// Job is a named unit of recurring work. The name is also its lock label.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Guard runs work under a named lock.
type Guard interface {
	WithLock(ctx context.Context, label string, work func(ctx context.Context) error) (lock.Result, error)
}

// Runner schedules jobs on tickers and runs every tick through the guard.
type Runner struct {
	guard    Guard
	recorder logstore.Store
	logger   zerolog.Logger

	mu      sync.Mutex
	jobs    []Job
	started bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunRecorder stores a log entry for every completed run.
func WithRunRecorder(store logstore.Store) RunnerOption {
	return func(r *Runner) {
		r.recorder = store
	}
}

// NewRunner creates a runner that guards each run with guard.
func NewRunner(guard Guard, logger zerolog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		guard:  guard,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a job. Jobs must be registered before Start.
func (r *Runner) Register(job Job) error {
	if job.Name == "" || job.Interval <= 0 || job.Run == nil {
		return ErrInvalidJob
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrRunnerStarted
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Start runs every registered job once immediately and then on its interval,
// until ctx is cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}
	r.started = true

	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
}

// Stop signals all job loops to stop and waits for in-flight runs to finish.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	logger := logging.JobLogger(r.logger, job.Name)

	r.RunOnce(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			logger.Info().Msg("job stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx, job)
		}
	}
}

// RunOnce makes a single guarded attempt at job and returns its status.
// A run is bounded by the job's interval.
func (r *Runner) RunOnce(ctx context.Context, job Job) string {
	logger := logging.JobLogger(r.logger, job.Name)

	runCtx, cancel := context.WithTimeout(ctx, job.Interval)
	defer cancel()
	runCtx = logging.ContextWithLogger(runCtx, logger)

	start := time.Now()
	res, err := r.guardedRun(runCtx, job)
	duration := time.Since(start)

	status := StatusSuccess
	switch {
	case !res.Acquired:
		status = StatusSkipped
		logger.Debug().Str("reason", string(res.Reason)).Msg("job run skipped")
	case err != nil:
		status = StatusFailed
		logger.Error().Err(err).Dur("duration", duration).Msg("job run failed")
	default:
		logger.Info().Dur("duration", duration).Msg("job run completed")
	}

	metrics.RecordJobRun(job.Name, status)

	if status != StatusSkipped {
		r.record(ctx, logger, job, status, duration, err, res.ReleaseErr)
	}
	return status
}

// guardedRun runs job through the guard. A panic in the job is returned as an
// error; the guard has already released the lock by the time it is recovered.
func (r *Runner) guardedRun(ctx context.Context, job Job) (res lock.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = lock.Result{Acquired: true}
			err = fmt.Errorf("%w: %v", ErrJobPanicked, p)
		}
	}()
	return r.guard.WithLock(ctx, job.Name, job.Run)
}

func (r *Runner) record(ctx context.Context, logger zerolog.Logger, job Job, status string, duration time.Duration, runErr, releaseErr error) {
	if r.recorder == nil {
		return
	}

	entry := &logstore.Entry{
		Level:    "info",
		Category: CategoryJobs,
		Message:  "job " + job.Name + " " + status,
		Metadata: map[string]interface{}{
			"job":        job.Name,
			"status":     status,
			"durationMs": duration.Milliseconds(),
		},
	}
	if runErr != nil {
		entry.Level = "error"
		entry.Metadata["error"] = runErr.Error()
	}
	if releaseErr != nil {
		entry.Metadata["releaseError"] = releaseErr.Error()
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if _, err := r.recorder.Create(recordCtx, entry); err != nil {
		logger.Warn().Err(err).Msg("failed to record job run")
	}
}
