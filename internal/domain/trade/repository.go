package trade

import (
	"context"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
)

// OrderFilter narrows order listings. Baskets are never listed.
type OrderFilter struct {
	shared.Filter
	Status  *OrderStatus
	BuyerID *uuid.UUID
	ShopID  *uuid.UUID
}

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// LockByID loads the order holding an exclusive row lock until the transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindBasket returns the buyer's basket or ErrNotFound.
	FindBasket(ctx context.Context, buyerID uuid.UUID) (*Order, error)
	FindAll(ctx context.Context, filter OrderFilter) ([]*Order, int64, error)
	// Save inserts a new order or updates an existing one, replacing its items.
	// Updates fail with ErrConcurrencyConflict when the stored version moved on.
	Save(ctx context.Context, order *Order) error
}
