package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/kneutral-org/ops-worker/internal/logging"
	"github.com/kneutral-org/ops-worker/internal/logstore"
)

// RetentionJobName is the job name and lock label of the log retention job.
const RetentionJobName = "log-retention"

// RetentionJob deletes log entries older than maxAge every interval.
// It logs through the logger carried by the run context.
func RetentionJob(store logstore.Store, interval, maxAge time.Duration) Job {
	return Job{
		Name:     RetentionJobName,
		Interval: interval,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().Add(-maxAge)

			removed, err := store.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("delete expired logs: %w", err)
			}

			if removed > 0 {
				logger := logging.LoggerFromContext(ctx)
				logger.Info().
					Int64("removedCount", removed).
					Time("cutoff", cutoff).
					Msg("cleaned up expired log entries")
			}
			return nil
		},
	}
}
