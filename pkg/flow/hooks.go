package flow

import (
	"context"
	"log/slog"
)

// PipeFunc transforms a context. Returning an error (or panicking) marks the pipe failed.
type PipeFunc[T any] func(ctx context.Context, fc *Context[T]) (*Context[T], error)

// Pipe is one step of a state: either a plain function or a windowed pipe.
type Pipe[T any] struct {
	Name     string
	Func     PipeFunc[T]
	Windowed *WindowedPipe[T]
}

// IsWindowed reports whether the pipe buffers contexts in a window.
func (p Pipe[T]) IsWindowed() bool {
	return p.Windowed != nil
}

// Hooks are the caller supplied extension points of the runners. Nil hooks are no-ops.
type Hooks[T any] struct {
	BeforeAll func(ctx context.Context, fc *Context[T])
	AfterAll  func(ctx context.Context, fc *Context[T])

	// AroundAll wraps a whole recursive run.
	AroundAll func(ctx context.Context, fc *Context[T], run func(context.Context) error) error

	// AroundEachState wraps the execution of one state. Returning false without calling
	// run skips the state.
	AroundEachState func(ctx context.Context, fc *Context[T], run func(context.Context) error) (bool, error)

	// AroundEach invokes a pipe; instrumentation and retries hook in here.
	AroundEach func(ctx context.Context, fc *Context[T], pipe PipeFunc[T]) (*Context[T], error)

	// AroundEachCondition decides whether a pipe runs. The returned context is kept
	// either way.
	AroundEachCondition func(ctx context.Context, fc *Context[T]) (*Context[T], bool)

	ExceptionHandler func(ctx context.Context, fc *Context[T], err error)

	// Refresh returns the item to operate on for the current iteration.
	Refresh func(ctx context.Context, fc *Context[T]) T

	Bootstrap func(ctx context.Context, fc *Context[T]) *Context[T]
	Extend    func(ctx context.Context, fc *Context[T]) *Context[T]

	// Sink receives every pipe result unless PREVENT_SINK is set.
	Sink func(ctx context.Context, fc *Context[T])
}

func (h Hooks[T]) withDefaults() Hooks[T] {
	if h.BeforeAll == nil {
		h.BeforeAll = func(context.Context, *Context[T]) {}
	}

	if h.AfterAll == nil {
		h.AfterAll = func(context.Context, *Context[T]) {}
	}

	if h.AroundAll == nil {
		h.AroundAll = func(ctx context.Context, _ *Context[T], run func(context.Context) error) error {
			return run(ctx)
		}
	}

	if h.AroundEachState == nil {
		h.AroundEachState = func(ctx context.Context, _ *Context[T], run func(context.Context) error) (bool, error) {
			return true, run(ctx)
		}
	}

	if h.AroundEach == nil {
		h.AroundEach = func(ctx context.Context, fc *Context[T], pipe PipeFunc[T]) (*Context[T], error) {
			return pipe(ctx, fc)
		}
	}

	if h.AroundEachCondition == nil {
		h.AroundEachCondition = func(_ context.Context, fc *Context[T]) (*Context[T], bool) {
			return fc, true
		}
	}

	if h.ExceptionHandler == nil {
		h.ExceptionHandler = func(context.Context, *Context[T], error) {}
	}

	if h.Refresh == nil {
		h.Refresh = func(_ context.Context, fc *Context[T]) T {
			return fc.Item()
		}
	}

	if h.Bootstrap == nil {
		h.Bootstrap = func(_ context.Context, fc *Context[T]) *Context[T] {
			return fc
		}
	}

	if h.Extend == nil {
		h.Extend = func(_ context.Context, fc *Context[T]) *Context[T] {
			return fc
		}
	}

	if h.Sink == nil {
		h.Sink = func(context.Context, *Context[T]) {}
	}

	return h
}

// ErrorStrategy decides how a run continues after a pipe failure. The returned context
// is carried into the next pipe; a non-nil error aborts the run.
type ErrorStrategy[T any] func(ctx context.Context, fc *Context[T], err error) (*Context[T], error)

// ArgError is the argument RecordError attaches to the context.
const ArgError = "error"

// ContinueOnError keeps the context the failed pipe received and moves on.
func ContinueOnError[T any](logger *slog.Logger) ErrorStrategy[T] {
	return func(ctx context.Context, fc *Context[T], err error) (*Context[T], error) {
		logger.WarnContext(ctx, "Pipe failed, continuing with next pipe", "error", err)

		return fc, nil
	}
}

// RecordError continues with an ephemeral error argument attached.
func RecordError[T any]() ErrorStrategy[T] {
	return func(_ context.Context, fc *Context[T], err error) (*Context[T], error) {
		return fc.WithArgs(NewEphemeralArgument(ArgError, err.Error())), nil
	}
}

// AbortOnError stops the run on the first failure.
func AbortOnError[T any]() ErrorStrategy[T] {
	return func(_ context.Context, fc *Context[T], err error) (*Context[T], error) {
		return fc, err
	}
}
