package persistence

import (
	"testing"

	"github.com/procurement/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestSortColumns_Clause(t *testing.T) {
	tests := []struct {
		name    string
		columns  sortColumns
		filter   shared.Filter
		fallback string
		want     string
	}{
		{"defaults to fallback descending", orderSort, shared.Filter{}, "created_at", "created_at DESC"},
		{"known key ascending", orderSort, shared.Filter{OrderBy: "placed_at", OrderDir: "asc"}, "created_at", "placed_at ASC"},
		{"direction is case insensitive", orderSort, shared.Filter{OrderBy: "status", OrderDir: " ASC "}, "created_at", "status ASC"},
		{"unmapped column", orderSort, shared.Filter{OrderBy: "buyer_id", OrderDir: "asc"}, "created_at", "created_at ASC"},
		{"keys are case sensitive", shopSort, shared.Filter{OrderBy: "NAME"}, "name", "name DESC"},
		{"offer keys are qualified", offerSort, shared.Filter{OrderBy: "price", OrderDir: "asc"}, "name", "product_infos.price ASC"},
		{"offer fallback is qualified", offerSort, shared.Filter{}, "name", "products.name DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.columns.clause(tt.filter, tt.fallback))
		})
	}
}

func TestSortColumns_RejectsInjection(t *testing.T) {
	payloads := []string{
		"id; DROP TABLE orders;--",
		"id' OR '1'='1",
		"status, (SELECT password_hash FROM users)",
		"CASE WHEN 1=1 THEN id ELSE status END",
		"products.name; --",
		"id\n; DROP TABLE orders",
	}
	for _, payload := range payloads {
		assert.Equal(t, "created_at DESC", orderSort.clause(shared.Filter{OrderBy: payload, OrderDir: payload}, "created_at"), payload)
		assert.Equal(t, "products.name DESC", offerSort.clause(shared.Filter{OrderBy: payload}, "name"), payload)
	}
}
