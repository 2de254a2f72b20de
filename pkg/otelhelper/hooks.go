package otelhelper

import (
	"context"

	"github.com/dukex/flowpipe/pkg/flow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TraceEach returns an AroundEach hook running every pipe in its own span. next wraps
// the pipe inside the span and may be nil.
func TraceEach[T any](tracer trace.Tracer, next func(context.Context, *flow.Context[T], flow.PipeFunc[T]) (*flow.Context[T], error)) func(context.Context, *flow.Context[T], flow.PipeFunc[T]) (*flow.Context[T], error) {
	return func(ctx context.Context, fc *flow.Context[T], pipe flow.PipeFunc[T]) (*flow.Context[T], error) {
		ctx, span := StartSpan(ctx, tracer, "flow.pipe",
			attribute.String(FlowIDKey, flow.JobKey(fc.Metadata())),
			attribute.String(StateKey, string(fc.State())),
			attribute.Int(PipeIndexKey, fc.PipeIndex()),
			attribute.Int(IterationKey, fc.Iteration()),
			attribute.String(ContextIDKey, fc.ID()),
		)
		defer span.End()

		var (
			out *flow.Context[T]
			err error
		)

		if next != nil {
			out, err = next(ctx, fc, pipe)
		} else {
			out, err = pipe(ctx, fc)
		}

		if err != nil {
			SetError(span, err)
		}

		return out, err
	}
}

// MeasureStates returns a flow.MeasureFunc wrapping every state of a recursive run in a span.
func MeasureStates(tracer trace.Tracer, flowID string) flow.MeasureFunc {
	return func(ctx context.Context, state flow.State, run func(context.Context) error) error {
		ctx, span := StartSpan(ctx, tracer, "flow.state "+string(state),
			attribute.String(FlowIDKey, flowID),
			attribute.String(StateKey, string(state)),
		)
		defer span.End()

		err := run(ctx)
		if err != nil {
			SetError(span, err)
		}

		return err
	}
}
