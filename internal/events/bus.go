package events

import (
	"sync"
	"time"
)

// Handler receives events published on the bus. Handlers run synchronously
// on the emitter's goroutine and must not block; long-lived consumers (the
// SSE stream, for example) should hand the event off to a buffered channel.
type Handler func(*Event)

// Bus is an in-process publish/subscribe hub. Emitters publish by type,
// subscribers register per type. There is no unsubscribe: subscribers live
// for the lifetime of the process (server handlers guard their own channels
// against writes after disconnect).
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for a single event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit builds an event and delivers it to every handler registered for its
// type. Delivery order follows subscription order.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := b.handlers[eventType]
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
