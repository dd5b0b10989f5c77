package catalog

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductParameter is a free-form name/value attribute of an offer
type ProductParameter struct {
	Name  string
	Value string
}

// ProductInfo is a shop's offer of a product: stock, price and source code.
// (ShopID, ProductID, ExternalID) identifies it; Quantity never drops below zero.
type ProductInfo struct {
	shared.BaseEntity
	ShopID     uuid.UUID
	ProductID  uuid.UUID
	ExternalID int64
	Model      string
	Quantity   int
	Price      decimal.Decimal
	PriceRRC   decimal.Decimal
	Parameters []ProductParameter

	// Read-side denormalization, filled by queries that join them in.
	ProductName  string
	CategoryID   uuid.UUID
	CategoryName string
	ShopName     string
}

// ProductInfoInput holds one offer as parsed from a price list
type ProductInfoInput struct {
	ProductID  uuid.UUID
	ExternalID int64
	Model      string
	Quantity   int
	Price      decimal.Decimal
	PriceRRC   decimal.Decimal
	Parameters map[string]string
}

// NewProductInfo validates an offer for shopID
func NewProductInfo(shopID uuid.UUID, in ProductInfoInput) (*ProductInfo, error) {
	if shopID == uuid.Nil || in.ProductID == uuid.Nil {
		return nil, shared.NewValidationError("Shop and product are required")
	}
	if in.Quantity < 0 {
		return nil, shared.NewValidationError("Quantity cannot be negative")
	}
	if !in.Price.IsPositive() {
		return nil, shared.NewValidationError("Price must be positive")
	}
	if in.PriceRRC.IsNegative() {
		return nil, shared.NewValidationError("Recommended retail price cannot be negative")
	}

	info := &ProductInfo{
		BaseEntity: shared.NewBaseEntity(),
		ShopID:     shopID,
		ProductID:  in.ProductID,
		ExternalID: in.ExternalID,
		Model:      strings.TrimSpace(in.Model),
		Quantity:   in.Quantity,
		Price:      in.Price,
		PriceRRC:   in.PriceRRC,
	}
	info.SetParameters(in.Parameters)
	return info, nil
}

// SetParameters replaces the parameters, ordered by name
func (p *ProductInfo) SetParameters(params map[string]string) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	p.Parameters = make([]ProductParameter, 0, len(names))
	for _, name := range names {
		p.Parameters = append(p.Parameters, ProductParameter{Name: name, Value: params[name]})
	}
}

// Key is the identity that survives catalog replacement
func (p *ProductInfo) Key() OfferKey {
	return OfferKey{ProductID: p.ProductID, ExternalID: p.ExternalID}
}

// CanServe reports whether quantity units are in stock
func (p *ProductInfo) CanServe(quantity int) bool {
	return quantity > 0 && quantity <= p.Quantity
}

// OfferKey identifies an offer within one shop
type OfferKey struct {
	ProductID  uuid.UUID
	ExternalID int64
}
