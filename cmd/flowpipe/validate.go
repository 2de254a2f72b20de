package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dukex/flowpipe/pkg/cmd"
	"github.com/dukex/flowpipe/pkg/jobs"
	"github.com/dukex/flowpipe/pkg/log"
	"github.com/dukex/flowpipe/pkg/persistence"
	"github.com/dukex/flowpipe/pkg/persistence/file"
	cli "github.com/urfave/cli/v3"
)

func plan(_ context.Context, command *cli.Command) error {
	paths := command.Args().Slice()
	if len(paths) == 0 {
		return ErrNoJobs
	}

	for i, path := range paths {
		def, err := jobs.Load(path)
		if err != nil {
			return err
		}

		if i > 0 {
			fmt.Println()
		}

		err = jobs.WritePlan(os.Stdout, def)
		if err != nil {
			return err
		}
	}

	return nil
}

func validate(ctx context.Context, command *cli.Command) error {
	paths := command.Args().Slice()
	if len(paths) == 0 {
		return ErrNoJobs
	}

	logger := log.WithModule("flowpipe")
	reg := cmd.NewRegistry(logger)

	// pipes are only built, never run, so checkpoints go to a throwaway directory
	scratch, err := os.MkdirTemp("", "flowpipe-validate-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	sm := persistence.NewStateManager(file.NewPersistence(scratch), logger)
	invalid := 0

	for _, path := range paths {
		fmt.Printf("Job: %s\n", path)

		def, err := jobs.Load(path)
		if err == nil {
			var items []string

			items, err = jobs.Items(def, filepath.Dir(path))
			if err == nil {
				_, err = jobs.Build(ctx, def, items, jobs.Options{Registry: reg, StateManager: sm, Logger: logger})
			}
		}

		if err != nil {
			fmt.Printf("  ❌ INVALID: %v\n", err)
			invalid++

			continue
		}

		fmt.Printf("  ✅ VALID (%d states)\n", len(def.States))
	}

	fmt.Printf("\nValidation Summary:\n")
	fmt.Printf("  Total jobs: %d\n", len(paths))
	fmt.Printf("  Valid jobs: %d\n", len(paths)-invalid)
	fmt.Printf("  Invalid jobs: %d\n", invalid)

	if invalid > 0 {
		return fmt.Errorf("found %d invalid jobs", invalid)
	}

	return nil
}
