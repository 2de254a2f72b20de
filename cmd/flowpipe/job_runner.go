package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/dukex/flowpipe/pkg/eventbus"
	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/dukex/flowpipe/pkg/jobs"
	"github.com/dukex/flowpipe/pkg/otelhelper"
	"github.com/dukex/flowpipe/pkg/persistence"
	"github.com/dukex/flowpipe/pkg/registry"
	"github.com/gammazero/workerpool"
	"go.opentelemetry.io/otel/trace"
)

// JobRunner loads job files and runs them against one checkpoint store.
type JobRunner struct {
	logger   *slog.Logger
	store    persistence.Persistence
	registry *registry.Registry

	// Concurrency bounds the jobs run at the same time, at least one.
	Concurrency int
	// Publisher receives flow events and sunk contexts when set.
	Publisher eventbus.EventPublisher
	// Tracer wraps states and pipes in spans when set.
	Tracer trace.Tracer
}

func NewJobRunner(logger *slog.Logger, store persistence.Persistence, reg *registry.Registry) *JobRunner {
	return &JobRunner{
		logger:      logger.With("module", "job_runner"),
		store:       store,
		registry:    reg,
		Concurrency: 1,
	}
}

// RunAll runs every job, returning the joined errors of the failed ones.
func (r *JobRunner) RunAll(ctx context.Context, paths []string) error {
	wp := workerpool.New(max(r.Concurrency, 1))

	var (
		mu   sync.Mutex
		errs []error
	)

	for _, path := range paths {
		wp.Submit(func() {
			_, err := r.RunJob(ctx, path)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				mu.Unlock()
			}
		})
	}

	wp.StopWait()

	return errors.Join(errs...)
}

// RunJob runs one job file to completion or to its first fatal error.
func (r *JobRunner) RunJob(ctx context.Context, path string) (*jobs.Report, error) {
	def, err := jobs.Load(path)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With("job_id", def.ID, "path", path)

	items, err := jobs.Items(def, filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	f, err := jobs.Build(ctx, def, items, jobs.Options{
		Registry:     r.registry,
		StateManager: persistence.NewStateManager(r.store, logger),
		Logger:       logger,
		Hooks:        r.hooks(),
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Running job", "items", len(items), "states", len(def.States))

	report, err := jobs.Run(ctx, f, def, r.runnerOptions(def.ID)...)
	if err != nil {
		logger.ErrorContext(ctx, "Job failed", "error", err)

		return report, err
	}

	logger.InfoContext(ctx, "Job completed",
		"executed_chunks", len(report.Executed),
		"skipped_chunks", len(report.Skipped))

	return report, nil
}

// Reset forgets the checkpoints of every job.
func (r *JobRunner) Reset(ctx context.Context, paths []string) error {
	for _, path := range paths {
		def, err := jobs.Load(path)
		if err != nil {
			return err
		}

		err = r.store.Reset(ctx, def.ID)
		if err != nil {
			return fmt.Errorf("failed to reset job %s: %w", def.ID, err)
		}

		r.logger.InfoContext(ctx, "Job checkpoints reset", "job_id", def.ID)
	}

	return nil
}

func (r *JobRunner) hooks() flow.Hooks[string] {
	var hooks flow.Hooks[string]

	if r.Publisher != nil {
		hooks.Sink = eventbus.SinkHook[string](r.Publisher, r.logger, nil)
	}

	if r.Tracer != nil {
		hooks.AroundEach = otelhelper.TraceEach[string](r.Tracer, nil)
	}

	return hooks
}

func (r *JobRunner) runnerOptions(jobID string) []flow.RunnerOption[string] {
	var opts []flow.RunnerOption[string]

	if r.Publisher != nil {
		opts = append(opts, flow.WithObserver[string](eventbus.Observer(r.Publisher, r.logger)))
	}

	if r.Tracer != nil {
		opts = append(opts, flow.WithMeasure[string](otelhelper.MeasureStates(r.Tracer, jobID)))
	}

	return opts
}
