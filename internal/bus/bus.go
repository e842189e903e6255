// Package bus carries events from loader goroutines to the frame goroutine.
//
// Publish may be called from any goroutine; events are queued and handed to
// subscribers only when the owner of the frame loop calls Dispatch.
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

const (
	// Asset events
	EventTypeModelReady  EventType = "asset.model_ready"
	EventTypeModelFailed EventType = "asset.model_failed"
	EventTypeCuesLoaded  EventType = "asset.cues_loaded"
	EventTypeCuesFailed  EventType = "asset.cues_failed"

	// Audio events
	EventTypeAudioReady  EventType = "audio.ready"
	EventTypeAudioFailed EventType = "audio.failed"

	// Avatar events
	EventTypeClipChanged     EventType = "avatar.clip_changed"
	EventTypeLipSyncStarted  EventType = "avatar.lipsync_started"
	EventTypeLipSyncFinished EventType = "avatar.lipsync_finished"
)

// Event represents a bus event
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

// EventBus is a queued pub/sub bus.
type EventBus struct {
	mu       sync.Mutex
	handlers map[EventType][]Handler
	pending  []Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish queues an event for the next Dispatch.
func (b *EventBus) Publish(event Event) {
	b.mu.Lock()
	b.pending = append(b.pending, event)
	b.mu.Unlock()
}

// PublishSync delivers an event to its handlers on the calling goroutine.
func (b *EventBus) PublishSync(event Event) {
	for _, handler := range b.handlersFor(event.Type) {
		handler(event)
	}
}

// Dispatch delivers every queued event in publish order on the calling goroutine
// and returns how many were delivered. Events published by handlers wait for the
// next Dispatch.
func (b *EventBus) Dispatch() int {
	b.mu.Lock()
	events := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, event := range events {
		b.PublishSync(event)
	}
	return len(events)
}

// Pending reports how many events are waiting for Dispatch.
func (b *EventBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Clear removes all handlers and drops queued events
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
	b.pending = nil
}

func (b *EventBus) handlersFor(eventType EventType) []Handler {
	b.mu.Lock()
	defer b.mu.Unlock()
	handlers := make([]Handler, len(b.handlers[eventType]))
	copy(handlers, b.handlers[eventType])
	return handlers
}
