package events

import (
	"sync"
)

// Handler is called synchronously for every published event.
type Handler func(Event)

// Bus fans lifecycle events out to registered handlers
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{}
}

// Handle registers fn to run inline on every Publish.
func (b *Bus) Handle(fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = append(b.handlers, fn)
}

// Publish runs every handler in registration order.
// A nil Bus discards the event.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, fn := range b.handlers {
		fn(event)
	}
}
