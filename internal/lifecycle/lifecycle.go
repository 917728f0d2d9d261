package lifecycle

import (
	"fmt"
	"sync"
)

// Kind identifies one of the four fixed lifecycle checkpoints.
type Kind string

const (
	EngineCreated      Kind = "engine.created"
	EngineInitialized  Kind = "engine.initialized"
	ContextCreated     Kind = "context.created"
	ContextInitialized Kind = "context.initialized"
)

// Event is a notification delivered at a lifecycle checkpoint. Engine events
// carry only EngineID; context events carry both identifiers.
type Event struct {
	Kind      Kind
	EngineID  string
	ContextID string
	// Payload holds the Engine or Context being announced.
	Payload any
}

// Handler processes a single lifecycle event. A non-nil error aborts
// delivery to the remaining handlers for that emission.
type Handler func(ev Event) error

// Bus is a synchronous, ordered notification channel for lifecycle events.
// Handlers are invoked in registration order against a snapshot of the
// subscriber list taken at emission time. There is no buffering or replay:
// a handler registered after an emission never observes that event.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

// NewBus creates an empty lifecycle event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Kind][]Handler),
	}
}

// On subscribes a handler to a checkpoint.
func (b *Bus) On(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Emit delivers the event synchronously to every handler subscribed at the
// time of the call, in registration order. The first handler error stops
// delivery and is returned to the caller.
func (b *Bus) Emit(ev Event) error {
	b.mu.RLock()
	snapshot := make([]Handler, len(b.handlers[ev.Kind]))
	copy(snapshot, b.handlers[ev.Kind])
	b.mu.RUnlock()

	for _, h := range snapshot {
		if err := h(ev); err != nil {
			return fmt.Errorf("lifecycle handler for %s failed: %w", ev.Kind, err)
		}
	}
	return nil
}

// SubscriberCount reports how many handlers are registered for a checkpoint.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}
