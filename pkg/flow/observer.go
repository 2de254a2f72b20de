package flow

import "context"

// EventKind names a runner lifecycle event.
type EventKind string

const (
	EventStateStarted    EventKind = "state.started"
	EventStateCompleted  EventKind = "state.completed"
	EventStateSkipped    EventKind = "state.skipped"
	EventPipeFailed      EventKind = "pipe.failed"
	EventWindowTriggered EventKind = "window.triggered"
	EventWindowFlushed   EventKind = "window.flushed"
	EventChunkSkipped    EventKind = "chunk.skipped"
	EventChunkProcessed  EventKind = "chunk.processed"
)

// Event describes something a runner did. Fields that do not apply are zero.
type Event struct {
	Kind      EventKind
	FlowID    string
	State     State
	NextState State
	Pipe      string
	WindowID  string
	ChunkHash string
	ItemIndex int
	PipeIndex int
	Count     int
	Err       error
}

// Observer receives runner events. It is called synchronously and must not block.
type Observer func(ctx context.Context, event Event)

func (o Observer) emit(ctx context.Context, event Event) {
	if o != nil {
		o(ctx, event)
	}
}

// Observers fans an event out to several observers.
func Observers(observers ...Observer) Observer {
	return func(ctx context.Context, event Event) {
		for _, o := range observers {
			o.emit(ctx, event)
		}
	}
}
