package shared

import "context"

// EventPublisher hands committed domain events to their consumers.
// Implementations must not fail the caller because a consumer failed.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent)
}

// EventHandler consumes published events of the types it lists
type EventHandler interface {
	EventTypes() []string
	Handle(ctx context.Context, event DomainEvent) error
}
