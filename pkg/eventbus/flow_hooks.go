package eventbus

import (
	"context"
	"log/slog"

	"github.com/dukex/flowpipe/pkg/events"
	"github.com/dukex/flowpipe/pkg/flow"
)

// Observer publishes runner events keyed by flow id. Publish failures are logged and
// never fail the run.
func Observer(publisher EventPublisher, logger *slog.Logger) flow.Observer {
	logger = logger.With("module", "flow_observer")

	return func(ctx context.Context, e flow.Event) {
		event, ok := events.FromFlow(e)
		if !ok {
			return
		}

		err := publisher.Publish(ctx, e.FlowID, event)
		if err != nil {
			logger.WarnContext(ctx, "Failed to publish flow event", "event_type", event.GetType(), "error", err)
		}
	}
}

// SinkHook publishes every sunk context as a ContextSunk event and then calls next,
// which may be nil.
func SinkHook[T any](publisher EventPublisher, logger *slog.Logger, next func(context.Context, *flow.Context[T])) func(context.Context, *flow.Context[T]) {
	logger = logger.With("module", "flow_sink")

	return func(ctx context.Context, fc *flow.Context[T]) {
		flowID := flow.JobKey(fc.Metadata())

		event := &events.ContextSunk{
			BaseEvent: events.NewBaseEvent(events.ContextSunkEvent, flowID),
			ContextID: fc.ID(),
			State:     string(fc.State()),
			Iteration: fc.Iteration(),
			PipeIndex: fc.PipeIndex(),
			Arguments: latestValues(fc.Arguments()),
		}

		err := publisher.Publish(ctx, flowID, event)
		if err != nil {
			logger.WarnContext(ctx, "Failed to publish sunk context", "context_id", fc.ID(), "error", err)
		}

		if next != nil {
			next(ctx, fc)
		}
	}
}

// latestValues keeps the most recent persistent value of every argument name.
func latestValues(args []flow.Argument) map[string]any {
	values := make(map[string]any, len(args))

	for _, arg := range args {
		if arg.Ephemeral || arg.Type == flow.ArgOld {
			continue
		}

		if _, seen := values[arg.Name]; !seen {
			values[arg.Name] = arg.Value
		}
	}

	return values
}
