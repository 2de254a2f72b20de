package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler re-runs functions on cron expressions. A run still in progress when its
// next tick fires makes that tick skip.
type Scheduler struct {
	logger *slog.Logger
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	logger = logger.With("module", "scheduler")
	cronLogger := &cronLogger{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		logger: logger,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers fn under a standard five field expression or a descriptor (@every 1m).
func (s *Scheduler) Add(expr string, fn func(ctx context.Context)) error {
	_, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression '%s': %w", expr, err)
	}

	entryID, err := s.cron.AddFunc(expr, func() { fn(s.ctx) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.logger.Info("Added cron job", "cron", expr, "entry_id", entryID)

	return nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.InfoContext(ctx, "Starting scheduler")
	s.cron.Start()

	<-ctx.Done()

	s.logger.InfoContext(ctx, "Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
