package trade

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers
type fixture struct {
	buyer  identity.Actor
	admin  identity.Actor
	shop   *catalog.Shop
	offer  *catalog.ProductInfo
	order  *Order
	offers map[uuid.UUID]*catalog.ProductInfo
	shops  map[uuid.UUID]*catalog.Shop
}

func newFixture(t *testing.T, stock, ordered int) *fixture {
	t.Helper()
	buyerID := uuid.New()
	shop, err := catalog.NewShop(uuid.New(), "Svyaznoy")
	require.NoError(t, err)

	offer, err := catalog.NewProductInfo(shop.ID, catalog.ProductInfoInput{
		ProductID:  uuid.New(),
		ExternalID: 4216292,
		Quantity:   stock,
		Price:      decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	order, err := NewBasket(buyerID)
	require.NoError(t, err)
	_, err = order.AddItem(offer, ordered)
	require.NoError(t, err)

	contact, err := identity.NewContact(buyerID, identity.ContactInput{
		Phone: "+79001234567", City: "Moscow", Street: "Tverskaya", House: "1",
	})
	require.NoError(t, err)
	require.NoError(t, order.SetContact(contact))

	return &fixture{
		buyer:  identity.NewActor(buyerID, "buyer@example.com", identity.RoleBuyer),
		admin:  identity.NewActor(uuid.New(), "admin@example.com", identity.RoleAdmin),
		shop:   shop,
		offer:  offer,
		order:  order,
		offers: map[uuid.UUID]*catalog.ProductInfo{offer.ID: offer},
		shops:  map[uuid.UUID]*catalog.Shop{shop.ID: shop},
	}
}

func (f *fixture) place(t *testing.T) {
	t.Helper()
	_, err := f.order.Place(f.buyer, f.offers, f.shops, time.Now())
	require.NoError(t, err)
}

// ============================================
// OrderStatus Tests
// ============================================

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusBasket:    {OrderStatusPlaced},
		OrderStatusPlaced:    {OrderStatusConfirmed, OrderStatusCanceled},
		OrderStatusConfirmed: {OrderStatusAssembled, OrderStatusCanceled},
		OrderStatusAssembled: {OrderStatusSent},
		OrderStatusSent:      {OrderStatusDelivered},
	}
	all := []OrderStatus{
		OrderStatusBasket, OrderStatusPlaced, OrderStatusConfirmed, OrderStatusAssembled,
		OrderStatusSent, OrderStatusDelivered, OrderStatusCanceled,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatus_Helpers(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCanceled.IsTerminal())
	assert.False(t, OrderStatusSent.IsTerminal())
	assert.Equal(t, "Confirmed", OrderStatusConfirmed.Title())

	s, ok := ParseOrderStatus(" Sent ")
	assert.True(t, ok)
	assert.Equal(t, OrderStatusSent, s)

	_, ok = ParseOrderStatus("new")
	assert.False(t, ok)
}

// ============================================
// Basket Tests
// ============================================

func TestOrder_Basket(t *testing.T) {
	t.Run("adding the same offer merges lines", func(t *testing.T) {
		f := newFixture(t, 10, 2)
		_, err := f.order.AddItem(f.offer, 3)
		require.NoError(t, err)
		require.Len(t, f.order.Items, 1)
		assert.Equal(t, 5, f.order.Items[0].Quantity)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		f := newFixture(t, 10, 2)
		_, err := f.order.AddItem(f.offer, 0)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("update and remove lines", func(t *testing.T) {
		f := newFixture(t, 10, 2)
		itemID := f.order.Items[0].ID
		require.NoError(t, f.order.UpdateItemQuantity(itemID, 7))
		assert.Equal(t, 7, f.order.Items[0].Quantity)

		require.NoError(t, f.order.RemoveItem(itemID))
		assert.Empty(t, f.order.Items)
		assert.ErrorIs(t, f.order.RemoveItem(itemID), shared.ErrNotFound)
	})

	t.Run("contact of another user is rejected", func(t *testing.T) {
		f := newFixture(t, 10, 2)
		other, err := identity.NewContact(uuid.New(), identity.ContactInput{
			Phone: "+79001234567", City: "Moscow", Street: "Arbat", House: "2",
		})
		require.NoError(t, err)
		assert.ErrorIs(t, f.order.SetContact(other), shared.ErrInvalidInput)
	})

	t.Run("content is frozen after placement", func(t *testing.T) {
		f := newFixture(t, 10, 2)
		f.place(t)
		_, err := f.order.AddItem(f.offer, 1)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.ErrorIs(t, f.order.UpdateItemQuantity(f.order.Items[0].ID, 1), shared.ErrInvalidState)
	})
}

// ============================================
// Placement Tests
// ============================================

func TestOrder_Place(t *testing.T) {
	t.Run("places when stock suffices and leaves stock alone", func(t *testing.T) {
		f := newFixture(t, 10, 4)
		events, err := f.order.Place(f.buyer, f.offers, f.shops, time.Now())

		require.NoError(t, err)
		assert.Equal(t, OrderStatusPlaced, f.order.Status)
		assert.NotNil(t, f.order.PlacedAt)
		assert.Equal(t, 10, f.offer.Quantity)
		require.Len(t, events, 1)
		placed, ok := events[0].(*OrderPlacedEvent)
		require.True(t, ok)
		assert.Equal(t, f.order.BuyerID, placed.BuyerID)
		assert.Equal(t, []uuid.UUID{f.shop.ID}, placed.ShopIDs)
		assert.Equal(t, OrderStatusBasket, placed.PreviousStatus)
	})

	t.Run("names every offending item", func(t *testing.T) {
		f := newFixture(t, 3, 4)
		second, err := catalog.NewProductInfo(f.shop.ID, catalog.ProductInfoInput{
			ProductID: uuid.New(), ExternalID: 2, Quantity: 1, Price: decimal.NewFromInt(5),
		})
		require.NoError(t, err)
		f.offers[second.ID] = second
		_, err = f.order.AddItem(second, 2)
		require.NoError(t, err)

		_, err = f.order.Place(f.buyer, f.offers, f.shops, time.Now())

		var stockErr *shared.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Len(t, stockErr.Shortages, 2)
		assert.Equal(t, OrderStatusBasket, f.order.Status)
		assert.Nil(t, f.order.PlacedAt)
	})

	t.Run("closed shop makes its items unavailable", func(t *testing.T) {
		f := newFixture(t, 10, 1)
		f.shop.State = catalog.ShopStateClosed

		_, err := f.order.Place(f.buyer, f.offers, f.shops, time.Now())

		var stockErr *shared.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 0, stockErr.Shortages[0].Available)
	})

	t.Run("vanished offer makes its item unavailable", func(t *testing.T) {
		f := newFixture(t, 10, 1)
		_, err := f.order.Place(f.buyer, map[uuid.UUID]*catalog.ProductInfo{}, f.shops, time.Now())
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})

	t.Run("requires a contact", func(t *testing.T) {
		f := newFixture(t, 10, 1)
		f.order.ContactID = nil
		_, err := f.order.Place(f.buyer, f.offers, f.shops, time.Now())
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects empty basket", func(t *testing.T) {
		f := newFixture(t, 10, 1)
		f.order.Items = nil
		_, err := f.order.Place(f.buyer, f.offers, f.shops, time.Now())
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("only the buyer may place", func(t *testing.T) {
		f := newFixture(t, 10, 1)
		_, err := f.order.Place(f.admin, f.offers, f.shops, time.Now())
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})
}

// ============================================
// Confirmation and Cancellation Tests
// ============================================

func TestOrder_Confirm(t *testing.T) {
	t.Run("admin confirms and prices are frozen", func(t *testing.T) {
		f := newFixture(t, 10, 4)
		f.place(t)

		events, err := f.order.Confirm(f.admin, f.offers, time.Now())
		require.NoError(t, err)
		assert.Equal(t, OrderStatusConfirmed, f.order.Status)
		assert.True(t, f.order.StockCommitted())
		assert.True(t, f.order.PricesFrozen())
		assert.True(t, decimal.NewFromInt(400).Equal(f.order.Total(nil)))
		require.Len(t, events, 1)
		assert.IsType(t, &OrderConfirmedEvent{}, events[0])
	})

	t.Run("rechecks stock against locked rows", func(t *testing.T) {
		f := newFixture(t, 10, 4)
		f.place(t)
		f.offer.Quantity = 3

		_, err := f.order.Confirm(f.admin, f.offers, time.Now())
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Equal(t, OrderStatusPlaced, f.order.Status)
	})

	t.Run("buyer cannot confirm", func(t *testing.T) {
		f := newFixture(t, 10, 4)
		f.place(t)
		_, err := f.order.Confirm(f.buyer, f.offers, time.Now())
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("basket cannot be confirmed", func(t *testing.T) {
		f := newFixture(t, 10, 4)
		_, err := f.order.Confirm(f.admin, f.offers, time.Now())
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Equal(t, OrderStatusBasket, f.order.Status)
	})
}

func TestOrder_Cancel(t *testing.T) {
	t.Run("buyer cancels placed order", func(t *testing.T) {
		f := newFixture(t, 10, 4)
		f.place(t)
		events, err := f.order.Cancel(f.buyer, "changed my mind", time.Now())
		require.NoError(t, err)
		assert.Equal(t, OrderStatusCanceled, f.order.Status)
		canceled := events[0].(*OrderCanceledEvent)
		assert.False(t, canceled.StockRestored)
		assert.Equal(t, "changed my mind", canceled.Reason)
	})

	t.Run("buyer cannot cancel confirmed order", func(t *testing.T) {
		f := newFixture(t, 10, 4)
		f.place(t)
		_, err := f.order.Confirm(f.admin, f.offers, time.Now())
		require.NoError(t, err)

		_, err = f.order.Cancel(f.buyer, "", time.Now())
		assert.ErrorIs(t, err, shared.ErrForbidden)
		assert.Equal(t, OrderStatusConfirmed, f.order.Status)
	})

	t.Run("admin cancel of confirmed order reports restock", func(t *testing.T) {
		f := newFixture(t, 10, 4)
		f.place(t)
		_, err := f.order.Confirm(f.admin, f.offers, time.Now())
		require.NoError(t, err)

		events, err := f.order.Cancel(f.admin, "", time.Now())
		require.NoError(t, err)
		assert.True(t, events[0].(*OrderCanceledEvent).StockRestored)
		assert.False(t, f.order.StockCommitted())
	})

	t.Run("delivered order cannot be canceled", func(t *testing.T) {
		f := newFixture(t, 10, 4)
		f.order.Status = OrderStatusDelivered
		_, err := f.order.Cancel(f.admin, "", time.Now())
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Equal(t, OrderStatusDelivered, f.order.Status)
	})
}

func TestOrder_Advance(t *testing.T) {
	f := newFixture(t, 10, 4)
	f.place(t)
	_, err := f.order.Confirm(f.admin, f.offers, time.Now())
	require.NoError(t, err)

	_, err = f.order.Advance(f.admin, OrderStatusSent, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidState, "cannot skip assembled")

	_, err = f.order.Advance(f.buyer, OrderStatusAssembled, time.Now())
	assert.ErrorIs(t, err, shared.ErrForbidden)

	for _, next := range []OrderStatus{OrderStatusAssembled, OrderStatusSent, OrderStatusDelivered} {
		events, err := f.order.Advance(f.admin, next, time.Now())
		require.NoError(t, err)
		advanced := events[0].(*OrderStatusAdvancedEvent)
		assert.Equal(t, next, advanced.Status)
	}
	assert.NotNil(t, f.order.DeliveredAt)

	_, err = f.order.Advance(f.admin, OrderStatusCanceled, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestOrder_LiveTotal(t *testing.T) {
	f := newFixture(t, 10, 3)
	prices := map[uuid.UUID]decimal.Decimal{f.offer.ID: decimal.NewFromInt(120)}
	assert.True(t, decimal.NewFromInt(360).Equal(f.order.Total(prices)))
	assert.Equal(t, 3, f.order.TotalQuantity())
}

func TestUniqueSortedIDs(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	assert.Equal(t, []uuid.UUID{a, b}, UniqueSortedIDs([]uuid.UUID{b, a, b}))
}
