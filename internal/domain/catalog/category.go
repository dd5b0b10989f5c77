package catalog

import (
	"strings"

	"github.com/procurement/backend/internal/domain/shared"
)

// Category groups products; shared by every shop that lists it
type Category struct {
	shared.BaseEntity
	Name string
}

// NewCategory creates a category with a unique name
func NewCategory(name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("Category name is required")
	}
	if len(name) > 100 {
		return nil, shared.NewValidationError("Category name cannot exceed 100 characters")
	}
	return &Category{BaseEntity: shared.NewBaseEntity(), Name: name}, nil
}
