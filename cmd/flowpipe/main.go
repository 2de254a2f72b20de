package main

import (
	"context"
	"os"

	"github.com/dukex/flowpipe/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultConcurrency = 1

func main() {
	cmd := &cli.Command{
		Name:                  "flowpipe",
		Usage:                 "Run resumable flows described by job files",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			runCommand(),
			planCommand(),
			validateCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("flowpipe").Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Run jobs, resuming from their checkpoints",
		ArgsUsage: "<job file>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Checkpoint store URL (directory, file://, postgres://, sqlite://, redis://)",
				Value:   "./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Publish flow events to an event bus (gochannel, kafka); empty disables events",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression re-running the jobs until interrupted",
				Sources: cli.EnvVars("FLOWPIPE_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"c"},
				Usage:   "Number of jobs run at the same time",
				Value:   defaultConcurrency,
				Sources: cli.EnvVars("FLOWPIPE_CONCURRENCY"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry spans over OTLP/HTTP",
				Sources: cli.EnvVars("FLOWPIPE_TRACING"),
			},
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Forget the checkpoints of the jobs before running them",
			},
		},
		Action: run,
	}
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Aliases:   []string{"p"},
		Usage:     "Print the states and pipes of jobs",
		ArgsUsage: "<job file>...",
		Action:    plan,
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate job files and their pipe configurations",
		ArgsUsage: "<job file>...",
		Action:    validate,
	}
}
