package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/flowpipe/pkg/cmd"
	"github.com/dukex/flowpipe/pkg/log"
	"github.com/dukex/flowpipe/pkg/otelhelper"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

// ErrNoJobs is returned when a command is called without job files.
var ErrNoJobs = errors.New("at least one job file is required")

func run(ctx context.Context, command *cli.Command) error {
	paths := command.Args().Slice()
	if len(paths) == 0 {
		return ErrNoJobs
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := "run-" + uuid.New().String()[:8]
	logger := log.WithModule("flowpipe").With("run_id", runID)

	logger.InfoContext(ctx, "Initializing flowpipe", "jobs", len(paths))

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := store.Close(context.Background())
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	runner := NewJobRunner(logger, store, cmd.NewRegistry(logger))
	runner.Concurrency = command.Int("concurrency")

	if provider := command.String("event-bus"); provider != "" {
		bus, err := cmd.NewEventBus(logger, provider, command.String("kafka-brokers"))
		if err != nil {
			return err
		}

		defer func() {
			err := bus.Close(context.Background())
			if err != nil {
				logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
			}
		}()

		runner.Publisher = bus
	}

	if command.Bool("tracing") {
		tp, err := otelhelper.NewTracerProvider(ctx, "flowpipe")
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err := tp.Shutdown(shutdownCtx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to shut down tracer provider", "error", err)
			}
		}()

		runner.Tracer = tp.Tracer("flowpipe")
	}

	if command.Bool("reset") {
		err := runner.Reset(ctx, paths)
		if err != nil {
			return err
		}
	}

	expr := command.String("schedule")
	if expr == "" {
		return runner.RunAll(ctx, paths)
	}

	scheduler := NewScheduler(logger)

	err = scheduler.Add(expr, func(ctx context.Context) {
		err := runner.RunAll(ctx, paths)
		if err != nil {
			logger.ErrorContext(ctx, "Scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	scheduler.Run(ctx)

	return nil
}
