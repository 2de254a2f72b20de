// Package events defines event types and structures for flow lifecycle notifications.
package events

import (
	"time"

	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every flow lifecycle event.
const Topic = "flowpipe.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// State lifecycle events.
	StateStartedEvent   EventType = "flow.state.started"
	StateCompletedEvent EventType = "flow.state.completed"
	StateSkippedEvent   EventType = "flow.state.skipped"

	// Pipe and window events.
	PipeFailedEvent      EventType = "flow.pipe.failed"
	WindowTriggeredEvent EventType = "flow.window.triggered"
	WindowFlushedEvent   EventType = "flow.window.flushed"
	ContextSunkEvent     EventType = "flow.context.sunk"

	// Batch events.
	ChunkSkippedEvent   EventType = "flow.chunk.skipped"
	ChunkProcessedEvent EventType = "flow.chunk.processed"
)

// Typed is implemented by every event through BaseEvent.
type Typed interface {
	GetType() EventType
}

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	FlowID    string         `json:"flow_id"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (b BaseEvent) GetType() EventType {
	return b.Type
}

// StateChanged reports a state starting, completing or being skipped as already done.
type StateChanged struct {
	BaseEvent

	State     string `json:"state"`
	NextState string `json:"next_state,omitempty"`
}

type PipeFailed struct {
	BaseEvent

	State     string `json:"state"`
	Pipe      string `json:"pipe"`
	ItemIndex int    `json:"item_index"`
	PipeIndex int    `json:"pipe_index"`
	Error     string `json:"error"`
}

// WindowFired reports a window aggregating its buffer, on trigger or on end-of-state flush.
type WindowFired struct {
	BaseEvent

	State     string `json:"state"`
	WindowID  string `json:"window_id"`
	ItemIndex int    `json:"item_index"`
	Count     int    `json:"count"`
}

type ChunkHandled struct {
	BaseEvent

	ChunkHash string `json:"chunk_hash"`
	Count     int    `json:"count"`
}

// ContextSunk carries the persistent arguments of a context handed to the sink hook.
type ContextSunk struct {
	BaseEvent

	ContextID string         `json:"context_id"`
	State     string         `json:"state"`
	Iteration int            `json:"iteration"`
	PipeIndex int            `json:"pipe_index"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func NewBaseEvent(eventType EventType, flowID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		FlowID:    flowID,
	}
}

var kinds = map[flow.EventKind]EventType{
	flow.EventStateStarted:    StateStartedEvent,
	flow.EventStateCompleted:  StateCompletedEvent,
	flow.EventStateSkipped:    StateSkippedEvent,
	flow.EventPipeFailed:      PipeFailedEvent,
	flow.EventWindowTriggered: WindowTriggeredEvent,
	flow.EventWindowFlushed:   WindowFlushedEvent,
	flow.EventChunkSkipped:    ChunkSkippedEvent,
	flow.EventChunkProcessed:  ChunkProcessedEvent,
}

// FromFlow converts a runner event into its published form. The boolean is false for
// kinds that are not published.
func FromFlow(e flow.Event) (Typed, bool) {
	eventType, ok := kinds[e.Kind]
	if !ok {
		return nil, false
	}

	base := NewBaseEvent(eventType, e.FlowID)

	switch e.Kind {
	case flow.EventStateStarted, flow.EventStateCompleted, flow.EventStateSkipped:
		return &StateChanged{BaseEvent: base, State: string(e.State), NextState: string(e.NextState)}, true
	case flow.EventPipeFailed:
		event := &PipeFailed{
			BaseEvent: base,
			State:     string(e.State),
			Pipe:      e.Pipe,
			ItemIndex: e.ItemIndex,
			PipeIndex: e.PipeIndex,
		}
		if e.Err != nil {
			event.Error = e.Err.Error()
		}

		return event, true
	case flow.EventWindowTriggered, flow.EventWindowFlushed:
		return &WindowFired{
			BaseEvent: base,
			State:     string(e.State),
			WindowID:  e.WindowID,
			ItemIndex: e.ItemIndex,
			Count:     e.Count,
		}, true
	default:
		return &ChunkHandled{BaseEvent: base, ChunkHash: e.ChunkHash, Count: e.Count}, true
	}
}

// Decode returns an empty value of the struct that carries eventType.
func Decode(eventType EventType) (Typed, bool) {
	switch eventType {
	case StateStartedEvent, StateCompletedEvent, StateSkippedEvent:
		return &StateChanged{}, true
	case PipeFailedEvent:
		return &PipeFailed{}, true
	case WindowTriggeredEvent, WindowFlushedEvent:
		return &WindowFired{}, true
	case ChunkSkippedEvent, ChunkProcessedEvent:
		return &ChunkHandled{}, true
	case ContextSunkEvent:
		return &ContextSunk{}, true
	default:
		return nil, false
	}
}
