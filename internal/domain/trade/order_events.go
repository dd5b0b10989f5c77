package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeOrder = "Order"

// Event type constants
const (
	EventTypeOrderPlaced         = "OrderPlaced"
	EventTypeOrderConfirmed      = "OrderConfirmed"
	EventTypeOrderCanceled       = "OrderCanceled"
	EventTypeOrderStatusAdvanced = "OrderStatusAdvanced"
)

// OrderEventData is the order snapshot carried by every order event
type OrderEventData struct {
	OrderID        uuid.UUID   `json:"order_id"`
	BuyerID        uuid.UUID   `json:"buyer_id"`
	ShopIDs        []uuid.UUID `json:"shop_ids"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previous_status"`
}

// Data returns the order snapshot
func (d OrderEventData) Data() OrderEventData {
	return d
}

// OrderEvent is implemented by all events raised by Order transitions
type OrderEvent interface {
	shared.DomainEvent
	Data() OrderEventData
}

func newOrderEventData(o *Order, previous OrderStatus) OrderEventData {
	return OrderEventData{
		OrderID:        o.ID,
		BuyerID:        o.BuyerID,
		ShopIDs:        o.ShopIDs(),
		Status:         o.Status,
		PreviousStatus: previous,
	}
}

// OrderPlacedEvent is raised when a basket becomes a placed order.
// Both the buyer and every shop owner in the order are told.
type OrderPlacedEvent struct {
	shared.BaseDomainEvent
	OrderEventData
	TotalQuantity int `json:"total_quantity"`
}

// NewOrderPlacedEvent creates a new OrderPlacedEvent
func NewOrderPlacedEvent(o *Order, previous OrderStatus, at time.Time) *OrderPlacedEvent {
	return &OrderPlacedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPlaced, AggregateTypeOrder, o.ID, at),
		OrderEventData:  newOrderEventData(o, previous),
		TotalQuantity:   o.TotalQuantity(),
	}
}

// OrderConfirmedEvent is raised when stock has been committed to the order
type OrderConfirmedEvent struct {
	shared.BaseDomainEvent
	OrderEventData
}

// NewOrderConfirmedEvent creates a new OrderConfirmedEvent
func NewOrderConfirmedEvent(o *Order, previous OrderStatus, at time.Time) *OrderConfirmedEvent {
	return &OrderConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderConfirmed, AggregateTypeOrder, o.ID, at),
		OrderEventData:  newOrderEventData(o, previous),
	}
}

// OrderCanceledEvent is raised on cancellation
type OrderCanceledEvent struct {
	shared.BaseDomainEvent
	OrderEventData
	Reason        string `json:"reason,omitempty"`
	StockRestored bool   `json:"stock_restored"`
}

// NewOrderCanceledEvent creates a new OrderCanceledEvent
func NewOrderCanceledEvent(o *Order, previous OrderStatus, restored bool, at time.Time) *OrderCanceledEvent {
	return &OrderCanceledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCanceled, AggregateTypeOrder, o.ID, at),
		OrderEventData:  newOrderEventData(o, previous),
		Reason:          o.CancelReason,
		StockRestored:   restored,
	}
}

// OrderStatusAdvancedEvent is raised for assembled, sent and delivered
type OrderStatusAdvancedEvent struct {
	shared.BaseDomainEvent
	OrderEventData
}

// NewOrderStatusAdvancedEvent creates a new OrderStatusAdvancedEvent
func NewOrderStatusAdvancedEvent(o *Order, previous OrderStatus, at time.Time) *OrderStatusAdvancedEvent {
	return &OrderStatusAdvancedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderStatusAdvanced, AggregateTypeOrder, o.ID, at),
		OrderEventData:  newOrderEventData(o, previous),
	}
}
