// internal/app/system/tasks/scheduler.go
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of scheduled background work.
type Job struct {
	Name string
	// Next returns the first run time strictly after now.
	Next func(now time.Time) time.Time
	// Timeout bounds one run. Zero means no bound beyond shutdown.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Every runs a job at a fixed interval.
func Every(d time.Duration) func(time.Time) time.Time {
	return func(now time.Time) time.Time { return now.Add(d) }
}

// DailyUTC runs a job once a day at hour:minute UTC.
func DailyUTC(hour, minute int) func(time.Time) time.Time {
	return func(now time.Time) time.Time {
		now = now.UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// Locker grants a named lease so only one replica runs a job at a time.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Scheduler runs each registered job on its own goroutine until Stop.
type Scheduler struct {
	log    *zap.Logger
	locker Locker
	jobs   []Job
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. locker may be nil for single-replica
// deployments.
func NewScheduler(log *zap.Logger, locker Locker) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{log: log, locker: locker, now: time.Now, ctx: ctx, cancel: cancel}
}

// Add registers a job. Call before Start.
func (s *Scheduler) Add(j Job) {
	s.jobs = append(s.jobs, j)
}

func (s *Scheduler) Start() {
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(j)
		s.log.Info("scheduled job started",
			zap.String("job", j.Name),
			zap.Time("next_run", j.Next(s.now())))
	}
}

// Stop cancels running jobs and waits for their loops to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(j Job) {
	defer s.wg.Done()
	for {
		wait := time.Until(j.Next(s.now()))
		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RunNow(s.ctx, j)
		}
	}
}

// RunNow executes j once, honoring the lock and timeout.
func (s *Scheduler) RunNow(parent context.Context, j Job) {
	ctx := parent
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, j.Timeout)
		defer cancel()
	}

	if s.locker != nil {
		ttl := j.Timeout
		if ttl == 0 {
			ttl = time.Hour
		}
		release, ok, err := s.locker.Acquire(ctx, "job:"+j.Name, ttl)
		if err != nil {
			s.log.Error("job lock failed", zap.String("job", j.Name), zap.Error(err))
			return
		}
		if !ok {
			s.log.Info("job already running elsewhere, skipping", zap.String("job", j.Name))
			return
		}
		defer release()
	}

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		s.log.Error("job failed",
			zap.String("job", j.Name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return
	}
	s.log.Debug("job finished", zap.String("job", j.Name), zap.Duration("took", time.Since(start)))
}
