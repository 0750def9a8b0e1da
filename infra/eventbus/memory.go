package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/amirasaad/crossledger/pkg/domain/events"
	"github.com/amirasaad/crossledger/pkg/eventbus"
)

// MemoryEventBus is a synchronous in-memory implementation of the Bus interface.
// Handlers run on the emitting goroutine; a failing or panicking handler is
// logged and does not stop the others.
type MemoryEventBus struct {
	handlers  map[events.EventType][]eventbus.HandlerFunc
	mu        sync.RWMutex
	logger    *slog.Logger
	published []events.Event
}

// NewWithMemory creates a new in-memory event bus.
func NewWithMemory(logger *slog.Logger) *MemoryEventBus {
	return &MemoryEventBus{
		handlers:  make(map[events.EventType][]eventbus.HandlerFunc),
		logger:    logger.With("bus", "memory"),
		published: make([]events.Event, 0),
	}
}

// Register registers a handler for a specific event type.
func (b *MemoryEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit dispatches the event to all registered handlers for its type.
func (b *MemoryEventBus) Emit(ctx context.Context, event events.Event) error {
	eventType := events.EventType(event.Type())
	b.mu.Lock()
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[eventType]...)
	b.published = append(b.published, event)
	b.mu.Unlock()

	for _, handler := range handlers {
		b.dispatch(ctx, handler, event)
	}
	return nil
}

func (b *MemoryEventBus) dispatch(ctx context.Context, handler eventbus.HandlerFunc, event events.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic recovered in event handler", "type", event.Type(), "panic", r)
		}
	}()
	if err := handler(ctx, event); err != nil {
		b.logger.Error("failed to process event", "type", event.Type(), "error", err)
	}
}

// ClearPublished clears the list of published events. This is useful for testing.
func (b *MemoryEventBus) ClearPublished() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = make([]events.Event, 0)
}

// Published returns a copy of the published events. This is useful for testing.
func (b *MemoryEventBus) Published() []events.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]events.Event(nil), b.published...)
}

// Ensure MemoryEventBus implements the Bus interface.
var _ eventbus.Bus = (*MemoryEventBus)(nil)
