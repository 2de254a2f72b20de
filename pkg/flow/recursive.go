package flow

import (
	"context"
	"fmt"
	"log/slog"
)

// MeasureFunc wraps the execution of one state, typically for timing or tracing.
type MeasureFunc func(ctx context.Context, state State, run func(context.Context) error) error

// WithMeasure wraps every state executed by a RecursiveFlowRunner.
func WithMeasure[T any](measure MeasureFunc) RunnerOption[T] {
	return func(o *runnerOptions[T]) {
		o.measure = measure
	}
}

// RecursiveFlowRunner runs every state from a starting state to the end of the graph.
type RecursiveFlowRunner[T any] struct {
	flow   *Flow[T]
	hooks  Hooks[T]
	opts   runnerOptions[T]
	logger *slog.Logger
}

// NewRecursiveFlowRunner creates a runner for f.
func NewRecursiveFlowRunner[T any](f *Flow[T], opts ...RunnerOption[T]) *RecursiveFlowRunner[T] {
	o := applyOptions(opts)
	if o.measure == nil {
		o.measure = func(ctx context.Context, _ State, run func(context.Context) error) error {
			return run(ctx)
		}
	}

	return &RecursiveFlowRunner[T]{
		flow:   f,
		hooks:  f.hooks.withDefaults(),
		opts:   o,
		logger: f.logger.With("module", "recursive_runner", "flow_id", f.id),
	}
}

// Run executes from and every later state. An empty from starts at the initial state.
// The final context of a state seeds the next one.
func (r *RecursiveFlowRunner[T]) Run(ctx context.Context, from State) (*Context[T], error) {
	if from == "" {
		from, _ = r.flow.InitState()
	}

	states := r.flow.StatesFrom(from)
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrStateNotFound, from)
	}

	current := r.opts.seed
	if current == nil {
		var zero T

		current = NewContext(zero, from, r.flow.metadata).WithFlow(r.flow)
	}

	r.hooks.BeforeAll(ctx, current)

	err := r.hooks.AroundAll(ctx, current, func(ctx context.Context) error {
		for _, state := range states {
			err := r.opts.measure(ctx, state, func(ctx context.Context) error {
				runner := NewOneStepRunner(r.flow, WithSeed(current), WithObserver[T](r.opts.observer))

				out, err := runner.Run(ctx, state)
				if out != nil {
					current = out
				}

				return err
			})
			if err != nil {
				return fmt.Errorf("state %s: %w", state, err)
			}
		}

		return nil
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "Flow run failed", "error", err)

		return current, err
	}

	r.hooks.AfterAll(ctx, current)
	r.logger.InfoContext(ctx, "Flow run completed", "states", len(states))

	return current, nil
}
