// Package eventbus publishes flow lifecycle events and delivers them to subscribers.
package eventbus

import (
	"context"

	"github.com/dukex/flowpipe/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(ctx context.Context, eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close(ctx context.Context) error
	GenerateID(ctx context.Context) string
}
