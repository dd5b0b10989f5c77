package trade

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/application/uow"
	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// basketSaveAttempts bounds retries when two requests create the same basket
const basketSaveAttempts = 2

// OrderMetrics observes the outcome of order transitions
type OrderMetrics interface {
	RecordOrderTransition(ctx context.Context, from, to trade.OrderStatus)
	RecordStockRejection(ctx context.Context, target trade.OrderStatus)
}

// OrderService runs the basket and the order state machine.
// Every transition locks the order row, applies the domain rule, adjusts
// stock where required and saves in one transaction. Events are published
// only after the commit.
type OrderService struct {
	scope          uow.TransactionScope
	orderRepo      trade.OrderRepository
	catalogRepo    catalog.Repository
	eventPublisher shared.EventPublisher
	metrics        OrderMetrics
	logger         *zap.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(scope uow.TransactionScope, orderRepo trade.OrderRepository, catalogRepo catalog.Repository, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		scope:       scope,
		orderRepo:   orderRepo,
		catalogRepo: catalogRepo,
		logger:      logger,
	}
}

// SetEventPublisher sets the publisher receiving committed order events
func (s *OrderService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the transition metrics recorder
func (s *OrderService) SetMetrics(metrics OrderMetrics) {
	s.metrics = metrics
}

// GetBasket returns the buyer's basket, creating it on first use
func (s *OrderService) GetBasket(ctx context.Context, actor identity.Actor) (*OrderResponse, error) {
	return s.mutateBasket(ctx, actor, nil)
}

// AddItem puts quantity units of an offer into the basket
func (s *OrderService) AddItem(ctx context.Context, actor identity.Actor, req AddBasketItemRequest) (*OrderResponse, error) {
	return s.mutateBasket(ctx, actor, func(repos uow.Repositories, basket *trade.Order) error {
		info, err := repos.Catalog().FindProductInfo(ctx, req.ProductInfoID)
		if err != nil {
			return err
		}
		_, err = basket.AddItem(info, req.Quantity)
		return err
	})
}

// UpdateItem changes the quantity of a basket line
func (s *OrderService) UpdateItem(ctx context.Context, actor identity.Actor, itemID uuid.UUID, req UpdateBasketItemRequest) (*OrderResponse, error) {
	return s.mutateBasket(ctx, actor, func(_ uow.Repositories, basket *trade.Order) error {
		return basket.UpdateItemQuantity(itemID, req.Quantity)
	})
}

// RemoveItem drops a basket line
func (s *OrderService) RemoveItem(ctx context.Context, actor identity.Actor, itemID uuid.UUID) (*OrderResponse, error) {
	return s.mutateBasket(ctx, actor, func(_ uow.Repositories, basket *trade.Order) error {
		return basket.RemoveItem(itemID)
	})
}

// SetContact selects the delivery address of the basket
func (s *OrderService) SetContact(ctx context.Context, actor identity.Actor, contactID uuid.UUID) (*OrderResponse, error) {
	return s.mutateBasket(ctx, actor, func(repos uow.Repositories, basket *trade.Order) error {
		return setContact(ctx, repos, basket, contactID)
	})
}

// Place moves the buyer's basket to placed
func (s *OrderService) Place(ctx context.Context, actor identity.Actor, req PlaceOrderRequest) (*OrderResponse, error) {
	if !actor.IsBuyer() {
		return nil, shared.NewAuthorizationError("Only buyers may place orders")
	}
	load := func(repos uow.Repositories) (*trade.Order, error) {
		basket, err := repos.Orders().FindBasket(ctx, actor.UserID)
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewValidationError("Cannot place an empty basket")
		}
		if err != nil {
			return nil, err
		}
		return repos.Orders().LockByID(ctx, basket.ID)
	}
	return s.transition(ctx, trade.OrderStatusPlaced, load, func(repos uow.Repositories, o *trade.Order) ([]shared.DomainEvent, error) {
		if req.ContactID != nil {
			if err := setContact(ctx, repos, o, *req.ContactID); err != nil {
				return nil, err
			}
		}
		return s.place(ctx, repos, actor, o)
	})
}

// Confirm commits stock to a placed order. Admin only.
func (s *OrderService) Confirm(ctx context.Context, actor identity.Actor, orderID uuid.UUID) (*OrderResponse, error) {
	return s.transition(ctx, trade.OrderStatusConfirmed, lockOrder(ctx, orderID), func(repos uow.Repositories, o *trade.Order) ([]shared.DomainEvent, error) {
		if _, err := repos.Catalog().ShareLockShops(ctx, o.ShopIDs()); err != nil {
			return nil, err
		}
		locked, err := repos.Catalog().LockProductInfos(ctx, o.ProductInfoIDs())
		if err != nil {
			return nil, err
		}
		events, err := o.Confirm(actor, indexOffers(locked), time.Now())
		if err != nil {
			return nil, err
		}

		required := o.RequiredQuantities()
		for _, id := range o.ProductInfoIDs() {
			if _, err := repos.Catalog().AdjustStock(ctx, id, -required[id]); err != nil {
				return nil, err
			}
		}
		return events, nil
	})
}

// Cancel cancels a placed or confirmed order, restoring committed stock
func (s *OrderService) Cancel(ctx context.Context, actor identity.Actor, orderID uuid.UUID, req CancelOrderRequest) (*OrderResponse, error) {
	return s.transition(ctx, trade.OrderStatusCanceled, lockOrder(ctx, orderID), func(repos uow.Repositories, o *trade.Order) ([]shared.DomainEvent, error) {
		restore := o.StockCommitted()
		if restore {
			if _, err := repos.Catalog().ShareLockShops(ctx, o.ShopIDs()); err != nil {
				return nil, err
			}
		}
		events, err := o.Cancel(actor, req.Reason, time.Now())
		if err != nil {
			return nil, err
		}
		if !restore {
			return events, nil
		}

		required := o.RequiredQuantities()
		for _, id := range o.ProductInfoIDs() {
			_, err := repos.Catalog().AdjustStock(ctx, id, required[id])
			if errors.Is(err, shared.ErrNotFound) {
				// The offer was dropped by a later import; nothing to return stock to.
				s.logger.Warn("Skipping stock restore for removed offer",
					zap.String("order_id", o.ID.String()),
					zap.String("product_info_id", id.String()),
					zap.Int("quantity", required[id]))
				continue
			}
			if err != nil {
				return nil, err
			}
		}
		return events, nil
	})
}

// Advance moves a confirmed order to assembled, sent or delivered. Admin only.
func (s *OrderService) Advance(ctx context.Context, actor identity.Actor, orderID uuid.UUID, target trade.OrderStatus) (*OrderResponse, error) {
	return s.transition(ctx, target, lockOrder(ctx, orderID), func(_ uow.Repositories, o *trade.Order) ([]shared.DomainEvent, error) {
		return o.Advance(actor, target, time.Now())
	})
}

// Transition routes a requested status change to the matching operation
func (s *OrderService) Transition(ctx context.Context, actor identity.Actor, orderID uuid.UUID, req TransitionOrderRequest) (*OrderResponse, error) {
	target, ok := trade.ParseOrderStatus(req.Status)
	if !ok {
		return nil, shared.NewValidationError("Invalid order status: %s", req.Status)
	}

	switch target {
	case trade.OrderStatusPlaced:
		return s.transition(ctx, target, lockOrder(ctx, orderID), func(repos uow.Repositories, o *trade.Order) ([]shared.DomainEvent, error) {
			return s.place(ctx, repos, actor, o)
		})
	case trade.OrderStatusConfirmed:
		return s.Confirm(ctx, actor, orderID)
	case trade.OrderStatusCanceled:
		return s.Cancel(ctx, actor, orderID, CancelOrderRequest{Reason: req.Reason})
	default:
		return s.Advance(ctx, actor, orderID, target)
	}
}

// GetByID returns an order the actor may read. Orders of other users are
// reported as missing.
func (s *OrderService) GetByID(ctx context.Context, actor identity.Actor, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.canView(ctx, actor, order) {
		return nil, shared.NewNotFoundError("order", orderID)
	}
	return s.respond(ctx, order)
}

// List returns the orders visible to the actor: admins see all, shop owners
// the orders containing their offers and buyers their own.
func (s *OrderService) List(ctx context.Context, actor identity.Actor, filter OrderListFilter) ([]OrderResponse, int64, error) {
	domainFilter := trade.OrderFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		},
	}
	if filter.Status != "" {
		status, ok := trade.ParseOrderStatus(filter.Status)
		if !ok {
			return nil, 0, shared.NewValidationError("Invalid order status: %s", filter.Status)
		}
		domainFilter.Status = &status
	}

	switch {
	case actor.IsAdmin():
	case actor.IsShop():
		shop, err := s.catalogRepo.FindShopByOwner(ctx, actor.UserID)
		if errors.Is(err, shared.ErrNotFound) {
			return []OrderResponse{}, 0, nil
		}
		if err != nil {
			return nil, 0, err
		}
		domainFilter.ShopID = &shop.ID
	case actor.IsBuyer():
		domainFilter.BuyerID = &actor.UserID
	default:
		return nil, 0, shared.ErrForbidden
	}

	orders, total, err := s.orderRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	prices, err := s.livePrices(ctx, orders...)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]OrderResponse, len(orders))
	for i, o := range orders {
		responses[i] = ToOrderResponse(o, prices)
	}
	return responses, total, nil
}

func (s *OrderService) mutateBasket(ctx context.Context, actor identity.Actor, fn func(repos uow.Repositories, basket *trade.Order) error) (*OrderResponse, error) {
	if !actor.IsBuyer() {
		return nil, shared.NewAuthorizationError("Only buyers may use a basket")
	}

	var basket *trade.Order
	var err error
	for attempt := 0; attempt < basketSaveAttempts; attempt++ {
		err = s.scope.Execute(ctx, func(repos uow.Repositories) error {
			b, created, err := findOrNewBasket(ctx, repos.Orders(), actor.UserID)
			if err != nil {
				return err
			}
			if fn != nil {
				if err := fn(repos, b); err != nil {
					return err
				}
			} else if !created {
				basket = b
				return nil
			}
			if err := repos.Orders().Save(ctx, b); err != nil {
				return err
			}
			basket = b
			return nil
		})
		// Another request created the basket concurrently; load theirs.
		if !errors.Is(err, shared.ErrAlreadyExists) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, basket)
}

func findOrNewBasket(ctx context.Context, orders trade.OrderRepository, buyerID uuid.UUID) (*trade.Order, bool, error) {
	basket, err := orders.FindBasket(ctx, buyerID)
	if err == nil {
		return basket, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}
	basket, err = trade.NewBasket(buyerID)
	if err != nil {
		return nil, false, err
	}
	return basket, true, nil
}

func setContact(ctx context.Context, repos uow.Repositories, o *trade.Order, contactID uuid.UUID) error {
	contact, err := repos.Contacts().FindByID(ctx, contactID)
	if err != nil {
		return err
	}
	return o.SetContact(contact)
}

// place checks stock against offers read under the shared shop locks, so an
// import of any involved shop cannot interleave with the placement.
func (s *OrderService) place(ctx context.Context, repos uow.Repositories, actor identity.Actor, o *trade.Order) ([]shared.DomainEvent, error) {
	shops, err := repos.Catalog().ShareLockShops(ctx, o.ShopIDs())
	if err != nil {
		return nil, err
	}
	offers, err := repos.Catalog().FindProductInfos(ctx, o.ProductInfoIDs())
	if err != nil {
		return nil, err
	}
	shopIndex := make(map[uuid.UUID]*catalog.Shop, len(shops))
	for _, shop := range shops {
		shopIndex[shop.ID] = shop
	}
	return o.Place(actor, indexOffers(offers), shopIndex, time.Now())
}

type loadFunc func(repos uow.Repositories) (*trade.Order, error)

type applyFunc func(repos uow.Repositories, o *trade.Order) ([]shared.DomainEvent, error)

func lockOrder(ctx context.Context, orderID uuid.UUID) loadFunc {
	return func(repos uow.Repositories) (*trade.Order, error) {
		return repos.Orders().LockByID(ctx, orderID)
	}
}

func (s *OrderService) transition(ctx context.Context, target trade.OrderStatus, load loadFunc, apply applyFunc) (*OrderResponse, error) {
	var order *trade.Order
	var events []shared.DomainEvent
	err := s.scope.Execute(ctx, func(repos uow.Repositories) error {
		o, err := load(repos)
		if err != nil {
			return err
		}
		evts, err := apply(repos, o)
		if err != nil {
			return err
		}
		if err := repos.Orders().Save(ctx, o); err != nil {
			return err
		}
		order, events = o, evts
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) && s.metrics != nil {
			s.metrics.RecordStockRejection(ctx, target)
		}
		return nil, err
	}

	s.logger.Info("Order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("status", order.Status.String()))
	s.publish(ctx, events)
	return s.respond(ctx, order)
}

func (s *OrderService) publish(ctx context.Context, events []shared.DomainEvent) {
	for _, e := range events {
		if oe, ok := e.(trade.OrderEvent); ok && s.metrics != nil {
			s.metrics.RecordOrderTransition(ctx, oe.Data().PreviousStatus, oe.Data().Status)
		}
	}
	if s.eventPublisher != nil && len(events) > 0 {
		s.eventPublisher.Publish(ctx, events...)
	}
}

func (s *OrderService) canView(ctx context.Context, actor identity.Actor, o *trade.Order) bool {
	switch {
	case actor.IsAdmin():
		return o.Status != trade.OrderStatusBasket
	case actor.Is(o.BuyerID):
		return true
	case actor.IsShop():
		shop, err := s.catalogRepo.FindShopByOwner(ctx, actor.UserID)
		return err == nil && o.IsVisibleToShop(shop.ID)
	}
	return false
}

func (s *OrderService) respond(ctx context.Context, o *trade.Order) (*OrderResponse, error) {
	prices, err := s.livePrices(ctx, o)
	if err != nil {
		return nil, err
	}
	response := ToOrderResponse(o, prices)
	return &response, nil
}

// livePrices reads current offer prices for orders not yet confirmed
func (s *OrderService) livePrices(ctx context.Context, orders ...*trade.Order) (map[uuid.UUID]decimal.Decimal, error) {
	var ids []uuid.UUID
	for _, o := range orders {
		if !o.PricesFrozen() {
			ids = append(ids, o.ProductInfoIDs()...)
		}
	}
	prices := make(map[uuid.UUID]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}
	infos, err := s.catalogRepo.FindProductInfos(ctx, trade.UniqueSortedIDs(ids))
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		prices[info.ID] = info.Price
	}
	return prices, nil
}

func indexOffers(infos []*catalog.ProductInfo) map[uuid.UUID]*catalog.ProductInfo {
	index := make(map[uuid.UUID]*catalog.ProductInfo, len(infos))
	for _, info := range infos {
		index[info.ID] = info
	}
	return index
}
