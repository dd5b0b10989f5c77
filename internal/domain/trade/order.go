package trade

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MaxItemQuantity bounds a single line to keep totals sane
const MaxItemQuantity = 100000

// OrderItem is one line of an order. UnitPrice stays zero until confirmation;
// before that the price is read live from the offer.
type OrderItem struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	ProductInfoID uuid.UUID
	ShopID        uuid.UUID
	ProductID     uuid.UUID
	ProductName   string
	Quantity      int
	UnitPrice     decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Amount returns the snapshotted line total
func (i *OrderItem) Amount() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the aggregate root for a buyer's purchase.
// Content is mutable only in the basket; status changes follow orderTransitions.
type Order struct {
	shared.BaseAggregateRoot
	BuyerID      uuid.UUID
	ContactID    *uuid.UUID
	Status       OrderStatus
	Items        []OrderItem
	PlacedAt     *time.Time
	ConfirmedAt  *time.Time
	AssembledAt  *time.Time
	SentAt       *time.Time
	DeliveredAt  *time.Time
	CanceledAt   *time.Time
	CancelReason string
}

// NewBasket creates the buyer's empty basket
func NewBasket(buyerID uuid.UUID) (*Order, error) {
	if buyerID == uuid.Nil {
		return nil, shared.NewValidationError("Buyer is required")
	}
	return &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		BuyerID:           buyerID,
		Status:            OrderStatusBasket,
		Items:             make([]OrderItem, 0),
	}, nil
}

// AddItem adds quantity units of an offer; an existing line for the offer is increased
func (o *Order) AddItem(info *catalog.ProductInfo, quantity int) (*OrderItem, error) {
	if err := o.ensureBasket(); err != nil {
		return nil, err
	}
	if info == nil {
		return nil, shared.NewValidationError("Product offer is required")
	}
	if err := validateItemQuantity(quantity); err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range o.Items {
		if o.Items[i].ProductInfoID == info.ID {
			if err := validateItemQuantity(o.Items[i].Quantity + quantity); err != nil {
				return nil, err
			}
			o.Items[i].Quantity += quantity
			o.Items[i].UpdatedAt = now
			o.UpdatedAt = now
			return &o.Items[i], nil
		}
	}

	o.Items = append(o.Items, OrderItem{
		ID:            uuid.New(),
		OrderID:       o.ID,
		ProductInfoID: info.ID,
		ShopID:        info.ShopID,
		ProductID:     info.ProductID,
		ProductName:   info.ProductName,
		Quantity:      quantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	o.UpdatedAt = now
	return &o.Items[len(o.Items)-1], nil
}

// UpdateItemQuantity sets the quantity of a basket line
func (o *Order) UpdateItemQuantity(itemID uuid.UUID, quantity int) error {
	if err := o.ensureBasket(); err != nil {
		return err
	}
	if err := validateItemQuantity(quantity); err != nil {
		return err
	}
	item := o.GetItem(itemID)
	if item == nil {
		return shared.NewNotFoundError("Order item", itemID)
	}
	item.Quantity = quantity
	item.UpdatedAt = time.Now()
	o.UpdatedAt = item.UpdatedAt
	return nil
}

// RemoveItem drops a basket line
func (o *Order) RemoveItem(itemID uuid.UUID) error {
	if err := o.ensureBasket(); err != nil {
		return err
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			o.UpdatedAt = time.Now()
			return nil
		}
	}
	return shared.NewNotFoundError("Order item", itemID)
}

// SetContact selects the delivery address
func (o *Order) SetContact(contact *identity.Contact) error {
	if err := o.ensureBasket(); err != nil {
		return err
	}
	if contact == nil || !contact.BelongsTo(o.BuyerID) {
		return shared.NewValidationError("Contact does not belong to the buyer")
	}
	id := contact.ID
	o.ContactID = &id
	o.UpdatedAt = time.Now()
	return nil
}

// GetItem returns the line with the given id, or nil
func (o *Order) GetItem(itemID uuid.UUID) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// Place moves the basket to placed. offers and shops must hold the current
// state of every offer and shop the order references; anything missing or
// closed counts as unavailable. No item is placed unless all can be.
func (o *Order) Place(actor identity.Actor, offers map[uuid.UUID]*catalog.ProductInfo, shops map[uuid.UUID]*catalog.Shop, now time.Time) ([]shared.DomainEvent, error) {
	if err := o.ensureTransition(OrderStatusPlaced); err != nil {
		return nil, err
	}
	if !actor.Is(o.BuyerID) {
		return nil, shared.NewAuthorizationError("Only the buyer may place this order")
	}
	if len(o.Items) == 0 {
		return nil, shared.NewValidationError("Cannot place an empty basket")
	}
	if o.ContactID == nil {
		return nil, shared.NewValidationError("A delivery contact must be selected before placing the order")
	}

	var shortages []shared.StockShortage
	for id, qty := range o.RequiredQuantities() {
		offer := offers[id]
		available := 0
		if offer != nil {
			if shop := shops[offer.ShopID]; shop != nil && shop.IsOpen() {
				available = offer.Quantity
			}
		}
		if qty > available {
			shortages = append(shortages, shared.StockShortage{ProductInfoID: id, Requested: qty, Available: available})
		}
	}
	if len(shortages) > 0 {
		return nil, shared.NewInsufficientStockError(shortages...)
	}

	previous := o.Status
	o.Status = OrderStatusPlaced
	o.PlacedAt = &now
	o.UpdatedAt = now
	return []shared.DomainEvent{NewOrderPlacedEvent(o, previous, now)}, nil
}

// Confirm moves a placed order to confirmed. lockedOffers must be read under
// row locks; the caller decrements stock by RequiredQuantities in the same
// transaction. Unit prices are frozen here.
func (o *Order) Confirm(actor identity.Actor, lockedOffers map[uuid.UUID]*catalog.ProductInfo, now time.Time) ([]shared.DomainEvent, error) {
	if err := o.ensureTransition(OrderStatusConfirmed); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, shared.NewAuthorizationError("Only an admin may confirm orders")
	}

	var shortages []shared.StockShortage
	for id, qty := range o.RequiredQuantities() {
		available := 0
		if offer := lockedOffers[id]; offer != nil {
			available = offer.Quantity
		}
		if qty > available {
			shortages = append(shortages, shared.StockShortage{ProductInfoID: id, Requested: qty, Available: available})
		}
	}
	if len(shortages) > 0 {
		return nil, shared.NewInsufficientStockError(shortages...)
	}

	for i := range o.Items {
		o.Items[i].UnitPrice = lockedOffers[o.Items[i].ProductInfoID].Price
		o.Items[i].UpdatedAt = now
	}
	previous := o.Status
	o.Status = OrderStatusConfirmed
	o.ConfirmedAt = &now
	o.UpdatedAt = now
	return []shared.DomainEvent{NewOrderConfirmedEvent(o, previous, now)}, nil
}

// Cancel moves a placed or confirmed order to canceled. Admins may cancel
// either; the buyer only while the order is placed. When StockCommitted was
// true before the call the caller must restore the stock.
func (o *Order) Cancel(actor identity.Actor, reason string, now time.Time) ([]shared.DomainEvent, error) {
	if err := o.ensureTransition(OrderStatusCanceled); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !(actor.Is(o.BuyerID) && o.Status == OrderStatusPlaced) {
		return nil, shared.NewAuthorizationError("Only an admin, or the buyer before confirmation, may cancel this order")
	}

	restored := o.StockCommitted()
	previous := o.Status
	o.Status = OrderStatusCanceled
	o.CanceledAt = &now
	o.CancelReason = reason
	o.UpdatedAt = now
	return []shared.DomainEvent{NewOrderCanceledEvent(o, previous, restored, now)}, nil
}

// Advance moves a confirmed order through assembled, sent and delivered. Admin only.
func (o *Order) Advance(actor identity.Actor, target OrderStatus, now time.Time) ([]shared.DomainEvent, error) {
	if !IsAdvance(target) {
		return nil, shared.NewInvalidTransitionError(o.Status, target)
	}
	if err := o.ensureTransition(target); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, shared.NewAuthorizationError("Only an admin may change the order status")
	}

	previous := o.Status
	o.Status = target
	switch target {
	case OrderStatusAssembled:
		o.AssembledAt = &now
	case OrderStatusSent:
		o.SentAt = &now
	case OrderStatusDelivered:
		o.DeliveredAt = &now
	}
	o.UpdatedAt = now
	return []shared.DomainEvent{NewOrderStatusAdvancedEvent(o, previous, now)}, nil
}

// StockCommitted reports whether the order currently holds decremented stock
func (o *Order) StockCommitted() bool {
	return o.Status == OrderStatusConfirmed
}

// RequiredQuantities sums the ordered units per offer
func (o *Order) RequiredQuantities() map[uuid.UUID]int {
	req := make(map[uuid.UUID]int, len(o.Items))
	for _, item := range o.Items {
		req[item.ProductInfoID] += item.Quantity
	}
	return req
}

// ProductInfoIDs returns the distinct offers referenced, sorted
func (o *Order) ProductInfoIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductInfoID)
	}
	return UniqueSortedIDs(ids)
}

// ShopIDs returns the distinct shops represented in the order, sorted
func (o *Order) ShopIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ShopID)
	}
	return UniqueSortedIDs(ids)
}

// TotalQuantity returns the number of units ordered
func (o *Order) TotalQuantity() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// Total computes the order sum. Until confirmation prices come from the live
// offers in prices; afterwards the frozen unit prices are used.
func (o *Order) Total(prices map[uuid.UUID]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		price := item.UnitPrice
		if !o.PricesFrozen() {
			price = prices[item.ProductInfoID]
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// PricesFrozen reports whether unit prices were captured at confirmation
func (o *Order) PricesFrozen() bool {
	return o.ConfirmedAt != nil
}

// IsVisibleToShop reports whether a shop owner may read the order
func (o *Order) IsVisibleToShop(shopID uuid.UUID) bool {
	if o.Status == OrderStatusBasket {
		return false
	}
	for _, item := range o.Items {
		if item.ShopID == shopID {
			return true
		}
	}
	return false
}

func (o *Order) ensureBasket() error {
	if o.Status != OrderStatusBasket {
		return shared.NewDomainError(shared.CodeInvalidState, "Order content can only be changed in the basket")
	}
	return nil
}

func (o *Order) ensureTransition(target OrderStatus) error {
	if !o.Status.CanTransitionTo(target) {
		return shared.NewInvalidTransitionError(o.Status, target)
	}
	return nil
}

func validateItemQuantity(quantity int) error {
	if quantity <= 0 {
		return shared.NewValidationError("Quantity must be positive")
	}
	if quantity > MaxItemQuantity {
		return shared.NewValidationError("Quantity cannot exceed %d", MaxItemQuantity)
	}
	return nil
}

// UniqueSortedIDs deduplicates ids and orders them canonically.
// Row locks are always taken in this order.
func UniqueSortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
