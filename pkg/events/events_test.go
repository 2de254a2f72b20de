package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFlow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event flow.Event
		want  EventType
		check func(t *testing.T, event Typed)
	}{
		{
			name:  "state completed",
			event: flow.Event{Kind: flow.EventStateCompleted, FlowID: "job", State: "a", NextState: "b"},
			want:  StateCompletedEvent,
			check: func(t *testing.T, event Typed) {
				t.Helper()

				changed, ok := event.(*StateChanged)
				require.True(t, ok)
				assert.Equal(t, "a", changed.State)
				assert.Equal(t, "b", changed.NextState)
			},
		},
		{
			name: "pipe failed",
			event: flow.Event{
				Kind: flow.EventPipeFailed, FlowID: "job", State: "a", Pipe: "upper",
				ItemIndex: 2, PipeIndex: 1, Err: errors.New("boom"),
			},
			want: PipeFailedEvent,
			check: func(t *testing.T, event Typed) {
				t.Helper()

				failed, ok := event.(*PipeFailed)
				require.True(t, ok)
				assert.Equal(t, "upper", failed.Pipe)
				assert.Equal(t, 2, failed.ItemIndex)
				assert.Equal(t, 1, failed.PipeIndex)
				assert.Equal(t, "boom", failed.Error)
			},
		},
		{
			name:  "window flushed",
			event: flow.Event{Kind: flow.EventWindowFlushed, FlowID: "job", State: "a", WindowID: "w", Count: 2},
			want:  WindowFlushedEvent,
			check: func(t *testing.T, event Typed) {
				t.Helper()

				fired, ok := event.(*WindowFired)
				require.True(t, ok)
				assert.Equal(t, "w", fired.WindowID)
				assert.Equal(t, 2, fired.Count)
			},
		},
		{
			name:  "chunk skipped",
			event: flow.Event{Kind: flow.EventChunkSkipped, FlowID: "job", ChunkHash: "abc", Count: 3},
			want:  ChunkSkippedEvent,
			check: func(t *testing.T, event Typed) {
				t.Helper()

				handled, ok := event.(*ChunkHandled)
				require.True(t, ok)
				assert.Equal(t, "abc", handled.ChunkHash)
				assert.Equal(t, 3, handled.Count)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			event, ok := FromFlow(tt.event)
			require.True(t, ok)
			assert.Equal(t, tt.want, event.GetType())
			tt.check(t, event)
		})
	}
}

func TestFromFlow_UnknownKind(t *testing.T) {
	t.Parallel()

	_, ok := FromFlow(flow.Event{Kind: "something.else"})
	assert.False(t, ok)
}

func TestDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	original, ok := FromFlow(flow.Event{Kind: flow.EventPipeFailed, FlowID: "job", Pipe: "p", Err: errors.New("x")})
	require.True(t, ok)

	payload, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"type":"flow.pipe.failed"`)
	assert.Contains(t, string(payload), `"flow_id":"job"`)

	decoded, ok := Decode(PipeFailedEvent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(payload, decoded))
	assert.Equal(t, original, decoded)

	_, ok = Decode("unknown")
	assert.False(t, ok)
}
