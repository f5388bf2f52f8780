package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"Vid2News/internal/ports"
)

type scheduledJob struct {
	driver ports.Scheduler
	desk   *Desk
	job    string
}

// Scheduler wires cron-like drivers with desk jobs.
type Scheduler struct {
	entries []scheduledJob
	logger  *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Add binds a driver to one job of a desk.
func (s *Scheduler) Add(driver ports.Scheduler, desk *Desk, job string) {
	s.entries = append(s.entries, scheduledJob{driver: driver, desk: desk, job: job})
}

// Len reports how many jobs are registered.
func (s *Scheduler) Len() int {
	return len(s.entries)
}

// Start registers every job with its driver. Job errors are logged, never fatal.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, e := range s.entries {
		if e.driver == nil || e.desk == nil {
			continue
		}
		entry := e
		run := func(trigger time.Time) {
			err := entry.desk.RunJob(ctx, entry.job)
			if errors.Is(err, ErrJobRunning) {
				s.info("scheduled job skipped, previous run still in flight", "desk", entry.desk.Name, "job", entry.job, "trigger", trigger)
				return
			}
			if err != nil {
				s.error("scheduled job failed", "desk", entry.desk.Name, "job", entry.job, "trigger", trigger, "error", err)
				return
			}
			s.info("scheduled job done", "desk", entry.desk.Name, "job", entry.job, "trigger", trigger)
		}
		if err := entry.driver.Start(ctx, run); err != nil {
			return errors.Join(err, s.Stop(ctx))
		}
	}
	return nil
}

// Stop gracefully tears down every driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	var errs []error
	for _, e := range s.entries {
		if e.driver == nil {
			continue
		}
		if err := e.driver.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) info(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Scheduler) error(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}
