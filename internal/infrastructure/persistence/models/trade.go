package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for orders. A partial unique index
// keeps one basket per buyer.
type OrderModel struct {
	AggregateModel
	BuyerID      uuid.UUID         `gorm:"type:uuid;not null;index;uniqueIndex:idx_orders_one_basket,where:status = 'basket'"`
	ContactID    *uuid.UUID        `gorm:"type:uuid"`
	Status       trade.OrderStatus `gorm:"type:varchar(20);not null;index"`
	PlacedAt     *time.Time
	ConfirmedAt  *time.Time
	AssembledAt  *time.Time
	SentAt       *time.Time
	DeliveredAt  *time.Time
	CanceledAt   *time.Time
	CancelReason string           `gorm:"type:varchar(500)"`
	Items        []OrderItemModel `gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *trade.Order {
	o := &trade.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		BuyerID:           m.BuyerID,
		ContactID:         m.ContactID,
		Status:            m.Status,
		PlacedAt:          m.PlacedAt,
		ConfirmedAt:       m.ConfirmedAt,
		AssembledAt:       m.AssembledAt,
		SentAt:            m.SentAt,
		DeliveredAt:       m.DeliveredAt,
		CanceledAt:        m.CanceledAt,
		CancelReason:      m.CancelReason,
		Items:             make([]trade.OrderItem, 0, len(m.Items)),
	}
	for i := range m.Items {
		o.Items = append(o.Items, m.Items[i].ToDomain())
	}
	return o
}

// FromDomain populates the persistence model from a domain Order, items included
func (m *OrderModel) FromDomain(o *trade.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.BuyerID = o.BuyerID
	m.ContactID = o.ContactID
	m.Status = o.Status
	m.PlacedAt = o.PlacedAt
	m.ConfirmedAt = o.ConfirmedAt
	m.AssembledAt = o.AssembledAt
	m.SentAt = o.SentAt
	m.DeliveredAt = o.DeliveredAt
	m.CanceledAt = o.CanceledAt
	m.CancelReason = o.CancelReason
	m.Items = make([]OrderItemModel, 0, len(o.Items))
	for i := range o.Items {
		m.Items = append(m.Items, OrderItemModelFromDomain(o.ID, &o.Items[i]))
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *trade.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderItemModel is the persistence model for order lines. The offer
// reference is deliberately not a foreign key: catalog imports may remove
// offers that old orders still mention.
type OrderItemModel struct {
	BaseModel
	OrderID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductInfoID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ShopID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName   string          `gorm:"type:varchar(100)"`
	Quantity      int             `gorm:"not null;check:chk_order_items_quantity,quantity > 0"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain OrderItem
func (m *OrderItemModel) ToDomain() trade.OrderItem {
	return trade.OrderItem{
		ID:            m.ID,
		OrderID:       m.OrderID,
		ProductInfoID: m.ProductInfoID,
		ShopID:        m.ShopID,
		ProductID:     m.ProductID,
		ProductName:   m.ProductName,
		Quantity:      m.Quantity,
		UnitPrice:     m.UnitPrice,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// OrderItemModelFromDomain creates a new persistence model from a domain OrderItem
func OrderItemModelFromDomain(orderID uuid.UUID, item *trade.OrderItem) OrderItemModel {
	return OrderItemModel{
		BaseModel: BaseModel{
			ID:        item.ID,
			CreatedAt: item.CreatedAt,
			UpdatedAt: item.UpdatedAt,
		},
		OrderID:       orderID,
		ProductInfoID: item.ProductInfoID,
		ShopID:        item.ShopID,
		ProductID:     item.ProductID,
		ProductName:   item.ProductName,
		Quantity:      item.Quantity,
		UnitPrice:     item.UnitPrice,
	}
}
