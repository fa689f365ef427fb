// Package sweeper completes account deletions once their grace period ends.
package sweeper

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dalemusser/tripledger/internal/app/system/metrics"
	"github.com/dalemusser/tripledger/internal/domain/models"
	"go.uber.org/zap"
)

// GracePeriod is how long a deletion request can still be canceled.
const GracePeriod = 7 * 24 * time.Hour

// Store is what a sweep reads and writes.
type Store interface {
	DueForDeletion(ctx context.Context, cutoff time.Time) ([]models.User, error)
	TripsWithExpensesBy(ctx context.Context, userID string) ([]string, error)
	// AnonymizeExpenses must rewrite all of the user's expenses in the trip
	// atomically.
	AnonymizeExpenses(ctx context.Context, tripID, userID, name string) (int64, error)
	MarkDeleted(ctx context.Context, userID string, at time.Time, name string) error
}

// Auditor records the outcome of each purge.
type Auditor interface {
	AccountPurged(ctx context.Context, userID string, trips int, err error)
}

// Result summarizes one sweep.
type Result struct {
	Candidates int `json:"candidates"`
	Deleted    int `json:"deleted"`
	Failed     int `json:"failed"`
}

type Sweeper struct {
	store Store
	audit Auditor
	log   *zap.Logger
	now   func() time.Time
}

// New returns a Sweeper. audit may be nil.
func New(store Store, audit Auditor, log *zap.Logger) *Sweeper {
	return &Sweeper{store: store, audit: audit, log: log, now: time.Now}
}

// WithClock overrides the time source.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run purges every account whose deletion was requested at least GracePeriod
// ago. Users are processed one at a time; a failure is logged and the user is
// left for the next run. Only a failed candidate query is returned as an error.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	var res Result
	now := s.now().UTC()
	cutoff := now.Add(-GracePeriod)

	due, err := s.store.DueForDeletion(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("query deletion candidates: %w", err)
	}
	res.Candidates = len(due)

	for _, u := range due {
		if err := ctx.Err(); err != nil {
			s.log.Warn("account sweep interrupted", zap.Int("remaining", len(due)-res.Deleted-res.Failed), zap.Error(err))
			return res, err
		}
		trips, err := s.purge(ctx, u, now)
		if s.audit != nil {
			s.audit.AccountPurged(ctx, u.ID, trips, err)
		}
		if err != nil {
			res.Failed++
			metrics.SweptAccounts.WithLabelValues("failed").Inc()
			s.log.Error("account purge failed", zap.String("user_id", u.ID), zap.Error(err))
			continue
		}
		res.Deleted++
		metrics.SweptAccounts.WithLabelValues("deleted").Inc()
		s.log.Info("account purged", zap.String("user_id", u.ID), zap.Int("trips", trips))
	}

	s.log.Info("account sweep finished",
		zap.Int("candidates", res.Candidates),
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed))
	return res, nil
}

// purge anonymizes the user's expenses trip by trip and then marks the user
// deleted. The user is only marked once every trip succeeded.
func (s *Sweeper) purge(ctx context.Context, u models.User, now time.Time) (int, error) {
	tripIDs, err := s.store.TripsWithExpensesBy(ctx, u.ID)
	if err != nil {
		return 0, fmt.Errorf("list trips: %w", err)
	}
	for _, tripID := range tripIDs {
		n, err := s.store.AnonymizeExpenses(ctx, tripID, u.ID, models.DeletedUserName)
		if err != nil {
			return 0, fmt.Errorf("anonymize expenses in trip %s: %w", tripID, err)
		}
		s.log.Debug("expenses anonymized",
			zap.String("user_id", u.ID),
			zap.String("trip_id", tripID),
			zap.Int64("expenses", n))
	}
	if err := s.store.MarkDeleted(ctx, u.ID, now, models.DeletedUserName); err != nil {
		return len(tripIDs), fmt.Errorf("mark deleted: %w", err)
	}
	return len(tripIDs), nil
}

// RemainingDays is how many whole days, rounded up, are left before a
// deletion requested at requestedAt becomes final. It never goes below zero.
func RemainingDays(requestedAt, now time.Time) int {
	left := requestedAt.Add(GracePeriod).Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}
