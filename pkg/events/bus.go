// Package events provides a small in-process event bus used to surface
// pipeline progress to interested subscribers (the CLI front-end).
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gookitEvent "github.com/gookit/event"
)

// Event is the contract all published events satisfy.
type Event interface {
	Type() string
	ID() string
	Timestamp() time.Time
	Metadata() map[string]any
}

// Handler processes a published event. Returning an error stops neither the
// publisher nor other handlers; it is logged by the bus owner.
type Handler func(Event) error

// Bus is a thin wrapper around gookit/event that keeps publishing
// synchronous: provisioning is a sequential pipeline and subscribers only
// render progress.
type Bus struct {
	manager *gookitEvent.Manager
	mu      sync.Mutex
	closed  bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		manager: gookitEvent.NewManager("pia-provision"),
	}
}

// Publish fires an event to all subscribers of its type.
func (b *Bus) Publish(ev Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.Unlock()

	err, _ := b.manager.Fire(ev.Type(), gookitEvent.M{"payload": ev})
	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", ev.Type(), err)
	}
	return nil
}

// Subscribe registers a handler for events of the given type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	listener := gookitEvent.ListenerFunc(func(e gookitEvent.Event) error {
		payload, ok := e.Get("payload").(Event)
		if !ok {
			return fmt.Errorf("invalid event payload: %T", e.Get("payload"))
		}
		return handler(payload)
	})
	b.manager.On(eventType, listener, gookitEvent.Normal)
}

// Close shuts the bus down; further publishes fail.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.manager.Clear()
	b.closed = true
	return nil
}

// BaseEvent provides a common implementation of the Event interface
type BaseEvent struct {
	id        string
	eventType string
	timestamp time.Time
	metadata  map[string]any
}

// NewBaseEvent creates a new base event
func NewBaseEvent(eventType string, metadata map[string]any) *BaseEvent {
	return &BaseEvent{
		id:        uuid.New().String(),
		eventType: eventType,
		timestamp: time.Now(),
		metadata:  metadata,
	}
}

// Type returns the event type
func (e *BaseEvent) Type() string { return e.eventType }

// ID returns the event ID
func (e *BaseEvent) ID() string { return e.id }

// Timestamp returns the event timestamp
func (e *BaseEvent) Timestamp() time.Time { return e.timestamp }

// Metadata returns the event metadata
func (e *BaseEvent) Metadata() map[string]any {
	if e.metadata == nil {
		return map[string]any{}
	}
	return e.metadata
}
