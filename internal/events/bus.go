package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Handlers run asynchronously, so publishers on the relay path never wait on them.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// A nil bus is a no-op so components can run without one.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case ViewportChangedEvent:
		event.Publish(b.dispatcher, e)
	case ScalerSpawnedEvent:
		event.Publish(b.dispatcher, e)
	case ScalerDrainedEvent:
		event.Publish(b.dispatcher, e)
	case SnapshotServedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e ViewportChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ViewportChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ScalerSpawnedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ScalerDrainedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SnapshotServedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}

// Close stops the dispatcher.
func (b *Bus) Close() error {
	return b.dispatcher.Close()
}
