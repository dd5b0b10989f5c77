package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_ShopState(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t, nil)
	imported, err := f.service.ImportCatalog(ctx, f.owner, []byte(svyaznoyDocument), "")
	require.NoError(t, err)

	admin := identity.NewActor(uuid.New(), "admin@example.com", identity.RoleAdmin)
	buyer := identity.NewActor(uuid.New(), "buyer@example.com", identity.RoleBuyer)

	offers, total, err := f.catalog.SearchOffers(ctx, OfferListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, offers, 3)

	t.Run("owner closes the shop and its offers disappear", func(t *testing.T) {
		shop, err := f.catalog.SetPartnerState(ctx, f.owner, SetShopStateRequest{State: "closed"})
		require.NoError(t, err)
		assert.Equal(t, "closed", shop.State)

		_, total, err := f.catalog.SearchOffers(ctx, OfferListFilter{})
		require.NoError(t, err)
		assert.Zero(t, total)

		state, err := f.catalog.GetPartnerShop(ctx, f.owner)
		require.NoError(t, err)
		assert.Equal(t, "closed", state.State)
	})

	t.Run("admin reopens any shop", func(t *testing.T) {
		shop, err := f.catalog.SetShopState(ctx, admin, imported.ShopID, SetShopStateRequest{State: "open"})
		require.NoError(t, err)
		assert.Equal(t, "open", shop.State)

		offers, _, err := f.catalog.SearchOffers(ctx, OfferListFilter{ShopID: &imported.ShopID, Search: "iphone"})
		require.NoError(t, err)
		assert.Len(t, offers, 2)
	})

	t.Run("capability checks", func(t *testing.T) {
		_, err := f.catalog.SetPartnerState(ctx, buyer, SetShopStateRequest{State: "closed"})
		assert.ErrorIs(t, err, shared.ErrForbidden)

		_, err = f.catalog.SetShopState(ctx, f.owner, imported.ShopID, SetShopStateRequest{State: "closed"})
		assert.ErrorIs(t, err, shared.ErrForbidden)

		_, err = f.catalog.GetPartnerShop(ctx, buyer)
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("shop owner without a shop", func(t *testing.T) {
		newcomer := identity.NewActor(uuid.New(), "new@example.com", identity.RoleShop)
		_, err := f.catalog.SetPartnerState(ctx, newcomer, SetShopStateRequest{State: "closed"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unknown state", func(t *testing.T) {
		_, err := f.catalog.SetPartnerState(ctx, f.owner, SetShopStateRequest{State: "paused"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestCatalogService_Reads(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t, nil)
	imported, err := f.service.ImportCatalog(ctx, f.owner, []byte(svyaznoyDocument), "")
	require.NoError(t, err)

	shops, total, err := f.catalog.ListShops(ctx, ShopListFilter{Search: "svyaz"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, shops, 1)
	assert.Equal(t, imported.ShopID, shops[0].ID)

	categories, err := f.catalog.ListCategories(ctx, CategoryListFilter{})
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	_, err = f.catalog.GetShopCatalog(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
