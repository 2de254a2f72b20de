package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/dukex/flowpipe/pkg/models"
	"github.com/dukex/flowpipe/pkg/pipes"
	"github.com/dukex/flowpipe/pkg/registry"
)

// Options are the collaborators a job flow is built with.
type Options struct {
	Registry     *registry.Registry
	StateManager flow.StateManager
	Logger       *slog.Logger
	Hooks        flow.Hooks[string]
}

// Build turns a definition into a flow over items.
func Build(ctx context.Context, def *models.JobDefinition, items []string, opts Options) (*flow.Flow[string], error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	builder := flow.NewBuilder(def.ID, items).
		WithStateManager(opts.StateManager).
		WithLogger(logger).
		WithHooks(opts.Hooks).
		WithErrorStrategy(errorStrategy(def.ErrorStrategy, logger))

	for key, value := range def.Metadata {
		builder.WithMetadata(key, value)
	}

	for _, state := range def.States {
		sb := builder.OnState(flow.State(state.Name))

		for _, p := range state.Pipes {
			pipe, err := opts.Registry.CreatePipe(ctx, p.Type, p.Name, p.Config)
			if err != nil {
				return nil, fmt.Errorf("state %s: %w", state.Name, err)
			}

			if p.Window == nil {
				sb.Pipe(p.Name, pipe)

				continue
			}

			wp, err := windowedPipe(opts.Registry, p, pipe)
			if err != nil {
				return nil, fmt.Errorf("state %s: %w", state.Name, err)
			}

			sb.Window(wp)
		}
	}

	return builder.Build()
}

func errorStrategy(strategy models.ErrorStrategy, logger *slog.Logger) flow.ErrorStrategy[string] {
	switch strategy {
	case models.ErrorStrategyRecord:
		return flow.RecordError[string]()
	case models.ErrorStrategyAbort:
		return flow.AbortOnError[string]()
	default:
		return flow.ContinueOnError[string](logger)
	}
}

func windowedPipe(reg *registry.Registry, p models.PipeDefinition, then flow.PipeFunc[string]) (*flow.WindowedPipe[string], error) {
	def := p.Window

	agg, err := reg.CreateAggregation(def.Aggregation, def.Argument, def.Separator)
	if err != nil {
		return nil, fmt.Errorf("window %s: %w", p.Name, err)
	}

	// string results become the working text of the following pipes
	agg = agg.OnResult(func(fc *flow.Context[string]) *flow.Context[string] {
		if text, ok := flow.Result[string](fc); ok {
			return pipes.WithText(fc, text)
		}

		return fc
	})

	wp := flow.NewWindowedPipe(p.Name, window(def), agg).Then(then)
	if def.Persist {
		wp = wp.PersistPartial()
	}

	return wp, nil
}

func window(def *models.WindowDefinition) flow.Window {
	switch def.Kind {
	case "sliding":
		slide := def.Slide
		if slide == 0 {
			slide = 1
		}

		return flow.Sliding{Length: def.Size, Step: slide}
	case "session":
		return flow.Session{Timeout: def.Size}
	default:
		return flow.Tumbling{Length: def.Size}
	}
}
