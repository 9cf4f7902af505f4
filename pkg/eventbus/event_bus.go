// Package eventbus publishes workflow lifecycle notifications (turn
// started/completed/failed, suspension paused/resumed/expired) to external
// consumers.
package eventbus

import (
	"context"

	"github.com/convflow/convflow/pkg/events"
)

// Event is any lifecycle notification carrying its own type tag.
type Event interface {
	GetType() events.EventType
}

// EventPublisher emits one event. key is the partition key, normally the
// session id, so all events of a conversation stay ordered.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches inbound lifecycle events to registered
// handlers. Handle binds a handler per event type before Subscribe starts
// the consume loop.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

// EventBus is the full publish/subscribe surface a binary wires once at
// startup.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
