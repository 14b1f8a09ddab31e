package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Job interface {
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron expressions, each run bounded by its own timeout.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger.With("component", "Scheduler"),
	}
}

func (s *Scheduler) Schedule(name, spec string, job Job, timeout time.Duration) (cron.EntryID, error) {
	id, err := s.cron.AddJob(spec, cron.FuncJob(func() { s.RunNow(context.Background(), name, job, timeout) }))
	if err != nil {
		s.logger.Error("Failed to schedule job", "job_name", name, "schedule", spec, slog.Any("error", err))
		return 0, fmt.Errorf("schedule %s with %q: %w", name, spec, err)
	}
	s.logger.Info("Scheduled job", "job_name", name, "schedule", spec, "job_id", id)
	return id, nil
}

// RunNow runs job synchronously and logs its outcome.
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job, timeout time.Duration) {
	jobLogger := s.logger.With("job_name", name)
	jobLogger.Info("Running job.")

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := job.Run(ctx); err != nil {
		jobLogger.Error("Job finished with error", slog.Any("error", err))
		return
	}
	jobLogger.Info("Job finished successfully.")
}

func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Cron scheduler started.")
}

// Stop waits up to grace for running jobs to finish.
func (s *Scheduler) Stop(grace time.Duration) {
	s.logger.Info("Stopping cron scheduler...")
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(grace):
		s.logger.Warn("Cron scheduler shutdown timed out.")
	}
}
