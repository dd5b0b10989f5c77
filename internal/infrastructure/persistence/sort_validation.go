package persistence

import (
	"strings"

	"github.com/procurement/backend/internal/domain/shared"
)

// sortColumns maps the sort keys a listing accepts to the SQL column it
// orders by. Only mapped keys reach the query.
type sortColumns map[string]string

var (
	shopSort = sortColumns{
		"id":         "id",
		"name":       "name",
		"state":      "state",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	// offer searches join products, so columns are qualified
	offerSort = sortColumns{
		"name":       "products.name",
		"price":      "product_infos.price",
		"quantity":   "product_infos.quantity",
		"created_at": "product_infos.created_at",
	}
	orderSort = sortColumns{
		"id":           "id",
		"status":       "status",
		"created_at":   "created_at",
		"updated_at":   "updated_at",
		"placed_at":    "placed_at",
		"confirmed_at": "confirmed_at",
	}
)

// clause returns the ORDER BY expression for filter. Unknown keys sort by
// fallback; any direction other than asc sorts descending.
func (s sortColumns) clause(filter shared.Filter, fallback string) string {
	column, ok := s[strings.TrimSpace(filter.OrderBy)]
	if !ok {
		column = s[fallback]
	}
	return column + " " + sortDirection(filter.OrderDir)
}

func sortDirection(dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		return "ASC"
	}
	return "DESC"
}
