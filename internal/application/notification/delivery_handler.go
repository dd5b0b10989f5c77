package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/task"
	"github.com/procurement/backend/internal/infrastructure/notify"
	"go.uber.org/zap"
)

// DeliveryHandler sends queued notifications through the configured transport.
// A delivery already acknowledged for the same event and address is skipped.
type DeliveryHandler struct {
	notifier notify.Notifier
	store    shared.IdempotencyStore
	ttl      time.Duration
	logger   *zap.Logger
}

// NewDeliveryHandler creates a new DeliveryHandler
func NewDeliveryHandler(notifier notify.Notifier, store shared.IdempotencyStore, cfg shared.IdempotencyConfig, logger *zap.Logger) *DeliveryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		store = nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = shared.DefaultIdempotencyConfig().TTL
	}
	return &DeliveryHandler{
		notifier: notifier,
		store:    store,
		ttl:      cfg.TTL,
		logger:   logger,
	}
}

// Kind implements task.Handler
func (h *DeliveryHandler) Kind() string {
	return task.KindNotificationDelivery
}

type deliveryDetail struct {
	Address   string `json:"address"`
	Template  string `json:"template"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Handle implements task.Handler
func (h *DeliveryHandler) Handle(ctx context.Context, t *task.Task) ([]byte, error) {
	var payload DeliveryPayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		return nil, shared.NewValidationError("Malformed delivery payload: %v", err)
	}
	detail := deliveryDetail{Address: payload.Address, Template: payload.Template}
	key := payload.IdempotencyKey()

	if h.store != nil {
		done, err := h.store.IsProcessed(ctx, key)
		if err != nil {
			// Sending twice beats not sending at all.
			h.logger.Warn("Idempotency check failed, sending anyway", zap.String("key", key), zap.Error(err))
		} else if done {
			detail.Duplicate = true
			return json.Marshal(detail)
		}
	}

	subject, body, err := Render(payload.Template, payload.Data)
	if err != nil {
		return nil, shared.NewValidationError("%v", err)
	}
	msg := notify.Message{
		To:       payload.Address,
		Template: payload.Template,
		Subject:  subject,
		Body:     body,
		Context: map[string]string{
			"order_id": payload.Data.OrderID.String(),
			"status":   payload.Data.Status,
		},
	}
	if err := h.notifier.Notify(ctx, msg); err != nil {
		h.logger.Warn("Notification delivery failed",
			zap.String("template", payload.Template),
			zap.Int("attempt", t.Attempts),
			zap.Error(err))
		return nil, err
	}

	if h.store != nil {
		if _, err := h.store.MarkProcessed(ctx, key, h.ttl); err != nil {
			h.logger.Warn("Failed to record delivery", zap.String("key", key), zap.Error(err))
		}
	}
	return json.Marshal(detail)
}

var _ task.Handler = (*DeliveryHandler)(nil)
