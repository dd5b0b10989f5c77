package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
)

// AddBasketItemRequest represents a request to put an offer into the basket
type AddBasketItemRequest struct {
	ProductInfoID uuid.UUID `json:"product_info_id" binding:"required"`
	Quantity      int       `json:"quantity" binding:"required,min=1"`
}

// UpdateBasketItemRequest represents a request to change a basket line
type UpdateBasketItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// PlaceOrderRequest represents a request to place the basket
type PlaceOrderRequest struct {
	ContactID *uuid.UUID `json:"contact_id"`
}

// CancelOrderRequest represents a request to cancel an order
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// TransitionOrderRequest represents an admin status change
type TransitionOrderRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

// OrderListFilter represents filter options for order list
type OrderListFilter struct {
	Status   string `form:"status"`
	Page     int    `form:"page" binding:"min=0"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// OrderItemResponse represents an order line in API responses
type OrderItemResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProductInfoID uuid.UUID       `json:"product_info_id"`
	ShopID        uuid.UUID       `json:"shop_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Amount        decimal.Decimal `json:"amount"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID            uuid.UUID           `json:"id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	ContactID     *uuid.UUID          `json:"contact_id,omitempty"`
	Status        string              `json:"status"`
	Items         []OrderItemResponse `json:"items"`
	TotalQuantity int                 `json:"total_quantity"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	PricesFrozen  bool                `json:"prices_frozen"`
	CancelReason  string              `json:"cancel_reason,omitempty"`
	PlacedAt      *time.Time          `json:"placed_at,omitempty"`
	ConfirmedAt   *time.Time          `json:"confirmed_at,omitempty"`
	AssembledAt   *time.Time          `json:"assembled_at,omitempty"`
	SentAt        *time.Time          `json:"sent_at,omitempty"`
	DeliveredAt   *time.Time          `json:"delivered_at,omitempty"`
	CanceledAt    *time.Time          `json:"canceled_at,omitempty"`
	Version       int                 `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// ToOrderResponse converts a domain order. prices holds live offer prices and
// is only consulted until the order is confirmed; missing offers price at zero.
func ToOrderResponse(o *trade.Order, prices map[uuid.UUID]decimal.Decimal) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, item := range o.Items {
		price := item.UnitPrice
		if !o.PricesFrozen() {
			price = prices[item.ProductInfoID]
		}
		items[i] = OrderItemResponse{
			ID:            item.ID,
			ProductInfoID: item.ProductInfoID,
			ShopID:        item.ShopID,
			ProductID:     item.ProductID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			UnitPrice:     price,
			Amount:        price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
	}

	return OrderResponse{
		ID:            o.ID,
		BuyerID:       o.BuyerID,
		ContactID:     o.ContactID,
		Status:        string(o.Status),
		Items:         items,
		TotalQuantity: o.TotalQuantity(),
		TotalAmount:   o.Total(prices),
		PricesFrozen:  o.PricesFrozen(),
		CancelReason:  o.CancelReason,
		PlacedAt:      o.PlacedAt,
		ConfirmedAt:   o.ConfirmedAt,
		AssembledAt:   o.AssembledAt,
		SentAt:        o.SentAt,
		DeliveredAt:   o.DeliveredAt,
		CanceledAt:    o.CanceledAt,
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
