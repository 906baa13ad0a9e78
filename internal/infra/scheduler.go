package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs periodic maintenance jobs. Jobs never overlap with themselves.
type Scheduler struct {
	sched  gocron.Scheduler
	ctx    context.Context
	logger *slog.Logger
}

// NewScheduler creates a stopped scheduler. Jobs receive ctx.
func NewScheduler(ctx context.Context, logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{sched: s, ctx: ctx, logger: logger}, nil
}

// Every registers task to run at a fixed interval. Errors are logged, not retried early.
func (s *Scheduler) Every(name string, interval time.Duration, task func(ctx context.Context) error) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			start := time.Now()
			if err := task(s.ctx); err != nil {
				s.logger.Error("scheduled job failed", "job", name, "error", err)
				return
			}
			s.logger.Debug("scheduled job done", "job", name, "duration", time.Since(start))
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	s.logger.Info("scheduled job registered", "job", name, "interval", interval)
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.sched.Start()
	<-ctx.Done()
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}
