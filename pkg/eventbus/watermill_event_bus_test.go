package eventbus_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/flowpipe/pkg/channels/gochannel"
	"github.com/dukex/flowpipe/pkg/eventbus"
	"github.com/dukex/flowpipe/pkg/events"
	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/dukex/flowpipe/pkg/persistence"
	"github.com/dukex/flowpipe/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	pub, sub := gochannel.CreateChannel(logger, gochannel.DefaultOptions)
	bus := eventbus.NewWatermillEventBus(pub, sub, logger)

	t.Cleanup(func() { _ = bus.Close(context.Background()) })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	received := make(chan *events.StateChanged, 1)

	require.NoError(t, bus.Handle(t.Context(), events.StateCompletedEvent, func(_ context.Context, event any) error {
		changed, ok := event.(*events.StateChanged)
		if ok {
			received <- changed
		}

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	published := &events.StateChanged{
		BaseEvent: events.NewBaseEvent(events.StateCompletedEvent, "job"),
		State:     "translate",
		NextState: "score",
	}
	require.NoError(t, bus.Publish(t.Context(), "job", published))

	select {
	case got := <-received:
		assert.Equal(t, published.ID, got.ID)
		assert.Equal(t, "translate", got.State)
		assert.Equal(t, "score", got.NextState)
		assert.Equal(t, "job", got.FlowID)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	received := make(chan any, 2)

	require.NoError(t, bus.Handle(t.Context(), events.ChunkProcessedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	require.NoError(t, bus.Publish(t.Context(), "job", &events.StateChanged{
		BaseEvent: events.NewBaseEvent(events.StateStartedEvent, "job"),
	}))
	require.NoError(t, bus.Publish(t.Context(), "job", &events.ChunkHandled{
		BaseEvent: events.NewBaseEvent(events.ChunkProcessedEvent, "job"),
		ChunkHash: "abc",
	}))

	select {
	case got := <-received:
		handled, ok := got.(*events.ChunkHandled)
		require.True(t, ok)
		assert.Equal(t, "abc", handled.ChunkHash)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}

	assert.Empty(t, received)
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	t.Parallel()

	bus := newBus(t)

	first := bus.GenerateID(t.Context())
	second := bus.GenerateID(t.Context())

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestWatermillEventBus_ObservesARun(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	completed := make(chan *events.StateChanged, 4)

	require.NoError(t, bus.Handle(t.Context(), events.StateCompletedEvent, func(_ context.Context, event any) error {
		completed <- event.(*events.StateChanged)

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	f, err := flow.NewBuilder("observed", []int{1, 2}).
		WithStateManager(persistence.NewStateManager(file.NewPersistence(t.TempDir()), slog.New(slog.DiscardHandler))).
		OnState("only").
		Pipe("noop", func(_ context.Context, fc *flow.Context[int]) (*flow.Context[int], error) { return fc, nil }).
		Build()
	require.NoError(t, err)

	runner := flow.NewOneStepRunner(f, flow.WithObserver[int](eventbus.Observer(bus, slog.New(slog.DiscardHandler))))

	_, err = runner.Run(t.Context(), "only")
	require.NoError(t, err)

	select {
	case got := <-completed:
		assert.Equal(t, "observed", got.FlowID)
		assert.Equal(t, "only", got.State)
	case <-time.After(5 * time.Second):
		t.Fatal("state completion not published")
	}
}
