// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/tripledger/internal/app/sweeper"
	"go.uber.org/zap"
)

// AccountSweepJob purges accounts whose deletion grace period has ended,
// once a day at hour:minute UTC.
func AccountSweepJob(sw *sweeper.Sweeper, logger *zap.Logger, hour, minute int, timeout time.Duration) Job {
	return Job{
		Name:    "account-sweeper",
		Next:    DailyUTC(hour, minute),
		Timeout: timeout,
		Run: func(ctx context.Context) error {
			res, err := sw.Run(ctx)
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				logger.Warn("account sweep left failures for the next run",
					zap.Int("failed", res.Failed),
					zap.Int("deleted", res.Deleted))
			}
			return nil
		},
	}
}

// StateCleaner removes expired login state.
type StateCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// OAuthStateCleanupJob removes expired OAuth state tokens hourly. The TTL
// index normally does this; the job covers delayed TTL passes.
func OAuthStateCleanupJob(states StateCleaner, logger *zap.Logger) Job {
	return Job{
		Name:    "oauth-state-cleanup",
		Next:    Every(time.Hour),
		Timeout: time.Minute,
		Run: func(ctx context.Context) error {
			count, err := states.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired OAuth states", zap.Int64("count", count))
			}
			return nil
		},
	}
}
