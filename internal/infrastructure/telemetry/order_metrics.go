package telemetry

import (
	"context"

	"github.com/procurement/backend/internal/domain/trade"
	"go.opentelemetry.io/otel/metric"
)

// OrderMetrics counts order state machine outcomes
type OrderMetrics struct {
	transitions     *Counter
	stockRejections *Counter
}

// NewOrderMetrics creates the order counters on the given meter
func NewOrderMetrics(meter metric.Meter) (*OrderMetrics, error) {
	transitions, err := NewCounter(meter,
		"procurement_order_transitions_total",
		"Committed order status transitions",
		"{transition}")
	if err != nil {
		return nil, err
	}
	rejections, err := NewCounter(meter,
		"procurement_order_stock_rejections_total",
		"Transitions refused for insufficient stock",
		"{rejection}")
	if err != nil {
		return nil, err
	}
	return &OrderMetrics{transitions: transitions, stockRejections: rejections}, nil
}

// RecordOrderTransition counts a committed transition
func (m *OrderMetrics) RecordOrderTransition(ctx context.Context, from, to trade.OrderStatus) {
	m.transitions.Inc(ctx, AttrOrderFrom.String(string(from)), AttrOrderTo.String(string(to)))
}

// RecordStockRejection counts a placement or confirmation refused for stock
func (m *OrderMetrics) RecordStockRejection(ctx context.Context, target trade.OrderStatus) {
	m.stockRejections.Inc(ctx, AttrOrderTo.String(string(target)))
}
