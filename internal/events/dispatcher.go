package events

import (
	"context"
	"sync"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(trigger domain.TriggerEvent, handler EventHandler)
}

// inMemoryDispatcher is a simple synchronous dispatcher. Handlers for one
// event run in registration order on the caller's goroutine, which keeps
// rule evaluation inside the same logical transaction as the mutation that
// produced the event.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[domain.TriggerEvent][]EventHandler
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[domain.TriggerEvent][]EventHandler),
	}
}

// Publish synchronously invokes handlers for the given event. A failing
// handler does not stop the remaining handlers.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Trigger]...)
	d.mu.RUnlock()

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe registers a handler for the given trigger.
func (d *inMemoryDispatcher) Subscribe(trigger domain.TriggerEvent, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[trigger] = append(d.listeners[trigger], handler)
}
