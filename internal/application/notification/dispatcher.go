// Package notification turns committed order events into queued deliveries.
package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/task"
	"github.com/procurement/backend/internal/domain/trade"
	"go.uber.org/zap"
)

// DeliveryPayload is the queued description of one notification
type DeliveryPayload struct {
	EventID   uuid.UUID    `json:"event_id"`
	EventType string       `json:"event_type"`
	Address   string       `json:"address"`
	Template  string       `json:"template"`
	Data      TemplateData `json:"data"`
}

// IdempotencyKey identifies the delivery of one event to one address
func (p DeliveryPayload) IdempotencyKey() string {
	return p.EventID.String() + ":" + p.Address
}

// Dispatcher resolves the recipients of order events and queues a delivery
// task for each. It never fails the transition that raised the event.
type Dispatcher struct {
	userRepo    identity.UserRepository
	catalogRepo catalog.Repository
	queue       task.Queue
	maxAttempts int
	logger      *zap.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(userRepo identity.UserRepository, catalogRepo catalog.Repository, queue task.Queue, maxAttempts int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		userRepo:    userRepo,
		catalogRepo: catalogRepo,
		queue:       queue,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// EventTypes implements shared.EventHandler
func (d *Dispatcher) EventTypes() []string {
	return []string{
		trade.EventTypeOrderPlaced,
		trade.EventTypeOrderConfirmed,
		trade.EventTypeOrderCanceled,
		trade.EventTypeOrderStatusAdvanced,
	}
}

type recipient struct {
	userID   uuid.UUID
	audience string
}

// Handle implements shared.EventHandler. Every recipient gets its own task;
// one failing enqueue does not stop the others.
func (d *Dispatcher) Handle(ctx context.Context, event shared.DomainEvent) error {
	orderEvent, ok := event.(trade.OrderEvent)
	if !ok {
		return nil
	}
	kind, ok := templateFor(event.EventType())
	if !ok {
		return nil
	}
	data := orderEvent.Data()

	recipients := []recipient{{userID: data.BuyerID, audience: AudienceBuyer}}
	if event.EventType() == trade.EventTypeOrderPlaced {
		recipients = append(recipients, d.shopOwners(ctx, data.ShopIDs)...)
	}

	ids := make([]uuid.UUID, len(recipients))
	for i, r := range recipients {
		ids[i] = r.userID
	}
	users, err := d.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("resolve recipients of %s: %w", event.EventType(), err)
	}
	byID := make(map[uuid.UUID]*identity.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	reason := ""
	if canceled, ok := event.(*trade.OrderCanceledEvent); ok {
		reason = canceled.Reason
	}

	var errs []error
	for _, r := range recipients {
		user, ok := byID[r.userID]
		if !ok || !user.IsActive {
			d.logger.Warn("Notification recipient unavailable",
				zap.String("event_id", event.EventID().String()),
				zap.String("user_id", r.userID.String()))
			continue
		}
		payload := DeliveryPayload{
			EventID:   event.EventID(),
			EventType: event.EventType(),
			Address:   user.Email,
			Template:  kind,
			Data: TemplateData{
				OrderID:        data.OrderID,
				Status:         data.Status.Title(),
				PreviousStatus: data.PreviousStatus.Title(),
				Reason:         reason,
				Audience:       r.audience,
				RecipientName:  user.FirstName,
			},
		}
		jobID, err := d.queue.Enqueue(ctx, task.KindNotificationDelivery, payload, task.WithMaxAttempts(d.maxAttempts))
		if err != nil {
			errs = append(errs, fmt.Errorf("queue %s for %s: %w", kind, user.Email, err))
			continue
		}
		d.logger.Debug("Notification queued",
			zap.String("job_id", jobID.String()),
			zap.String("template", kind),
			zap.String("audience", r.audience))
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) shopOwners(ctx context.Context, shopIDs []uuid.UUID) []recipient {
	owners := make([]recipient, 0, len(shopIDs))
	seen := make(map[uuid.UUID]bool, len(shopIDs))
	for _, id := range shopIDs {
		shop, err := d.catalogRepo.FindShopByID(ctx, id)
		if err != nil {
			d.logger.Warn("Shop of placed order not found", zap.String("shop_id", id.String()), zap.Error(err))
			continue
		}
		if seen[shop.OwnerID] {
			continue
		}
		seen[shop.OwnerID] = true
		owners = append(owners, recipient{userID: shop.OwnerID, audience: AudienceShop})
	}
	return owners
}

var _ shared.EventHandler = (*Dispatcher)(nil)
