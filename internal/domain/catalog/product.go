package catalog

import (
	"strings"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
)

// Product is the shop-independent identity of a good.
// Products are matched by exact name; the first import naming one creates it.
type Product struct {
	shared.BaseEntity
	Name       string
	CategoryID uuid.UUID
}

// NewProduct creates a product in a category
func NewProduct(name string, categoryID uuid.UUID) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("Product name is required")
	}
	if len(name) > 100 {
		return nil, shared.NewValidationError("Product name cannot exceed 100 characters")
	}
	if categoryID == uuid.Nil {
		return nil, shared.NewValidationError("Product category is required")
	}
	return &Product{BaseEntity: shared.NewBaseEntity(), Name: name, CategoryID: categoryID}, nil
}
