package trade

import "strings"

// OrderStatus represents the lifecycle status of an order
type OrderStatus string

const (
	OrderStatusBasket    OrderStatus = "basket"
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusAssembled OrderStatus = "assembled"
	OrderStatusSent      OrderStatus = "sent"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCanceled  OrderStatus = "canceled"
)

// orderTransitions is the complete directed graph of allowed status changes.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusBasket:    {OrderStatusPlaced},
	OrderStatusPlaced:    {OrderStatusConfirmed, OrderStatusCanceled},
	OrderStatusConfirmed: {OrderStatusAssembled, OrderStatusCanceled},
	OrderStatusAssembled: {OrderStatusSent},
	OrderStatusSent:      {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCanceled:  {},
}

// ParseOrderStatus converts user input into a status
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	return status, status.IsValid()
}

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// Title returns the status with a capital first letter, as shown to buyers
func (s OrderStatus) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the status
func (s OrderStatus) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// AllowedTransitions returns the statuses reachable in one step
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	return append([]OrderStatus(nil), orderTransitions[s]...)
}

// IsAdvance reports whether target is one of the fulfilment steps after confirmation
func IsAdvance(target OrderStatus) bool {
	return target == OrderStatusAssembled || target == OrderStatusSent || target == OrderStatusDelivered
}
