package event

import (
	"context"
	"slices"
	"sync"

	"github.com/procurement/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Bus delivers committed domain events to subscribed handlers in process.
// A failing or panicking handler is logged and never reaches the publisher.
type Bus struct {
	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	wildcard []shared.EventHandler
	logger   *zap.Logger
}

// NewBus creates a new in-process event bus
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{byType: make(map[string][]shared.EventHandler), logger: logger}
}

// Publish hands every event to its handlers synchronously. Handlers run
// detached from the caller's cancellation, so an aborted request still
// notifies about a transition that already committed.
func (b *Bus) Publish(ctx context.Context, events ...shared.DomainEvent) {
	ctx = context.WithoutCancel(ctx)
	for _, event := range events {
		for _, handler := range b.handlersFor(event.EventType()) {
			if err := b.dispatch(ctx, handler, event); err != nil {
				b.logger.Error("handler failed to process event",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.Error(err),
				)
			}
		}
	}
}

// Subscribe registers a handler for its own event types, or for the given
// ones. A handler that lists no types receives every event.
func (b *Bus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	if len(eventTypes) == 0 {
		b.wildcard = append(b.wildcard, handler)
	}
	for _, eventType := range eventTypes {
		b.byType[eventType] = append(b.byType[eventType], handler)
	}
	b.mu.Unlock()

	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler from every event type
func (b *Bus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	same := func(h shared.EventHandler) bool { return h == handler }
	b.wildcard = slices.DeleteFunc(b.wildcard, same)
	for eventType, handlers := range b.byType {
		if handlers = slices.DeleteFunc(handlers, same); len(handlers) == 0 {
			delete(b.byType, eventType)
		} else {
			b.byType[eventType] = handlers
		}
	}
}

func (b *Bus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]shared.EventHandler, 0, len(b.byType[eventType])+len(b.wildcard))
	out = append(out, b.byType[eventType]...)
	return append(out, b.wildcard...)
}

func (b *Bus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventPublisher = (*Bus)(nil)
