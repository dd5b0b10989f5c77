package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/trade"
	"github.com/procurement/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements trade.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order with its items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, wrapErr("find order", err, shared.NewNotFoundError("order", id))
	}
	return model.ToDomain(), nil
}

// LockByID loads the order under FOR UPDATE. Items are read separately so the
// lock clause applies to the order row only.
func (r *GormOrderRepository) LockByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	db := r.db.WithContext(ctx)
	var model models.OrderModel
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
		return nil, wrapErr("lock order", err, shared.NewNotFoundError("order", id))
	}
	if err := db.Where("order_id = ?", id).Order("created_at, id").Find(&model.Items).Error; err != nil {
		return nil, wrapErr("load order items", err, nil)
	}
	return model.ToDomain(), nil
}

// FindBasket returns the buyer's basket
func (r *GormOrderRepository) FindBasket(ctx context.Context, buyerID uuid.UUID) (*trade.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Where("buyer_id = ? AND status = ?", buyerID, trade.OrderStatusBasket).
		First(&model).Error; err != nil {
		return nil, wrapErr("find basket", err, shared.ErrNotFound)
	}
	return model.ToDomain(), nil
}

// FindAll lists non-basket orders with pagination
func (r *GormOrderRepository) FindAll(ctx context.Context, filter trade.OrderFilter) ([]*trade.Order, int64, error) {
	page := filter.Filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("status <> ?", trade.OrderStatusBasket)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.BuyerID != nil {
		query = query.Where("buyer_id = ?", *filter.BuyerID)
	}
	if filter.ShopID != nil {
		query = query.Where("EXISTS (SELECT 1 FROM order_items WHERE order_items.order_id = orders.id AND order_items.shop_id = ?)", *filter.ShopID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapErr("count orders", err, nil)
	}

	var orderModels []models.OrderModel
	if err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Order(orderSort.clause(page, "created_at")).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&orderModels).Error; err != nil {
		return nil, 0, wrapErr("list orders", err, nil)
	}
	orders := make([]*trade.Order, len(orderModels))
	for i := range orderModels {
		orders[i] = orderModels[i].ToDomain()
	}
	return orders, total, nil
}

// Save writes the order and replaces its items. The stored version must
// match order.Version; on success the version is incremented.
func (r *GormOrderRepository) Save(ctx context.Context, order *trade.Order) error {
	model := models.OrderModelFromDomain(order)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OrderModel{}).
			Where("id = ? AND version = ?", order.ID, order.Version).
			Updates(map[string]any{
				"contact_id":    order.ContactID,
				"status":        order.Status,
				"placed_at":     order.PlacedAt,
				"confirmed_at":  order.ConfirmedAt,
				"assembled_at":  order.AssembledAt,
				"sent_at":       order.SentAt,
				"delivered_at":  order.DeliveredAt,
				"canceled_at":   order.CanceledAt,
				"cancel_reason": order.CancelReason,
				"updated_at":    time.Now(),
				"version":       order.Version + 1,
			})
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.OrderModel{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return shared.ErrConcurrencyConflict
			}
			if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItemModel{}).Error; err != nil {
				return err
			}
			model.Version = order.Version + 1
		}

		if len(model.Items) > 0 {
			return tx.Create(&model.Items).Error
		}
		return nil
	})
	if err != nil {
		if IsUniqueViolation(err) && order.Status == trade.OrderStatusBasket {
			return shared.ErrAlreadyExists
		}
		return wrapErr("save order", err, nil)
	}
	order.Version = model.Version
	return nil
}

var _ trade.OrderRepository = (*GormOrderRepository)(nil)
