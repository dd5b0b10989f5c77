package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/persistence/models"
	"github.com/procurement/backend/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

// catalogFixture is a shop with one category and one product, persisted in SQLite
type catalogFixture struct {
	repo     *GormCatalogRepository
	shop     *catalog.Shop
	category *catalog.Category
	product  *catalog.Product
}

func newCatalogFixture(t *testing.T, shopName string) *catalogFixture {
	t.Helper()
	ctx := context.Background()
	repo := NewGormCatalogRepository(testutil.NewSQLiteDB(t))
	return seedShop(t, ctx, repo, shopName)
}

func seedShop(t *testing.T, ctx context.Context, repo *GormCatalogRepository, shopName string) *catalogFixture {
	t.Helper()
	shop, err := catalog.NewShop(uuid.New(), shopName)
	require.NoError(t, err)
	require.NoError(t, repo.SaveShop(ctx, shop))

	category, err := repo.FindOrCreateCategory(ctx, "Smartphones")
	require.NoError(t, err)
	require.NoError(t, repo.LinkCategoryToShop(ctx, category.ID, shop.ID))

	product, err := repo.FindOrCreateProduct(ctx, "Smartphone Apple iPhone XS Max 512GB", category.ID)
	require.NoError(t, err)

	return &catalogFixture{repo: repo, shop: shop, category: category, product: product}
}

func (f *catalogFixture) offer(t *testing.T, externalID int64, quantity int, params map[string]string) *catalog.ProductInfo {
	t.Helper()
	info, err := catalog.NewProductInfo(f.shop.ID, catalog.ProductInfoInput{
		ProductID:  f.product.ID,
		ExternalID: externalID,
		Model:      "apple/iphone/xs-max",
		Quantity:   quantity,
		Price:      decimal.NewFromInt(110000),
		PriceRRC:   decimal.NewFromInt(116990),
		Parameters: params,
	})
	require.NoError(t, err)
	return info
}

func TestGormCatalogRepository_FindOrCreate(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, "Svyaznoy")

	again, err := f.repo.FindOrCreateCategory(ctx, "Smartphones")
	require.NoError(t, err)
	assert.Equal(t, f.category.ID, again.ID)

	product, err := f.repo.FindOrCreateProduct(ctx, f.product.Name, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, f.product.ID, product.ID)
	assert.Equal(t, f.category.ID, product.CategoryID, "existing product keeps its category")

	require.NoError(t, f.repo.LinkCategoryToShop(ctx, f.category.ID, f.shop.ID))
	categories, err := f.repo.ListCategories(ctx, &f.shop.ID)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Smartphones", categories[0].Name)

	other := uuid.New()
	categories, err = f.repo.ListCategories(ctx, &other)
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestGormCatalogRepository_Shops(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, "Svyaznoy")

	byOwner, err := f.repo.FindShopByOwner(ctx, f.shop.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, f.shop.ID, byOwner.ID)

	_, err = f.repo.FindShopByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	dup, err := catalog.NewShop(uuid.New(), "Svyaznoy")
	require.NoError(t, err)
	assert.ErrorIs(t, f.repo.SaveShop(ctx, dup), shared.ErrAlreadyExists)

	locked, err := f.repo.LockShop(ctx, f.shop.ID)
	require.NoError(t, err)
	assert.True(t, locked.IsOpen())

	shops, err := f.repo.ShareLockShops(ctx, []uuid.UUID{f.shop.ID, uuid.New(), f.shop.ID})
	require.NoError(t, err)
	assert.Len(t, shops, 1)

	list, total, err := f.repo.ListShops(ctx, shared.Filter{Search: "svyaz"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
}

func TestGormCatalogRepository_ReplaceShopCatalog(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, "Svyaznoy")

	kept := f.offer(t, 4216292, 14, map[string]string{"Color": "gold", "Storage": "512"})
	dropped := f.offer(t, 4216313, 3, nil)
	require.NoError(t, f.repo.ReplaceShopCatalog(ctx, f.shop.ID, []*catalog.ProductInfo{kept, dropped}))

	items, err := f.repo.GetShopCatalog(ctx, f.shop.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Smartphone Apple iPhone XS Max 512GB", items[0].ProductName)
	assert.Equal(t, "Smartphones", items[0].CategoryName)
	assert.Equal(t, "Svyaznoy", items[0].ShopName)
	assert.Len(t, items[0].Parameters, 2)
	originalID := items[0].ID

	t.Run("re-import keeps ids of surviving offers and deletes the rest", func(t *testing.T) {
		again := f.offer(t, 4216292, 7, map[string]string{"Color": "silver"})
		require.NoError(t, f.repo.ReplaceShopCatalog(ctx, f.shop.ID, []*catalog.ProductInfo{again}))

		items, err := f.repo.GetShopCatalog(ctx, f.shop.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, originalID, items[0].ID)
		assert.Equal(t, 7, items[0].Quantity)
		assert.Equal(t, []catalog.ProductParameter{{Name: "Color", Value: "silver"}}, items[0].Parameters)

		_, err = f.repo.FindProductInfo(ctx, dropped.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("empty document clears the catalog", func(t *testing.T) {
		require.NoError(t, f.repo.ReplaceShopCatalog(ctx, f.shop.ID, nil))
		items, err := f.repo.GetShopCatalog(ctx, f.shop.ID)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("duplicate offers are rejected", func(t *testing.T) {
		a := f.offer(t, 1, 1, nil)
		b := f.offer(t, 1, 2, nil)
		err := f.repo.ReplaceShopCatalog(ctx, f.shop.ID, []*catalog.ProductInfo{a, b})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("an external id cannot name two products", func(t *testing.T) {
		other, err := f.repo.FindOrCreateProduct(ctx, "Smartphone Apple iPhone XR 64GB", f.category.ID)
		require.NoError(t, err)
		a := f.offer(t, 5, 1, nil)
		b := f.offer(t, 5, 1, nil)
		b.ProductID = other.ID
		err = f.repo.ReplaceShopCatalog(ctx, f.shop.ID, []*catalog.ProductInfo{a, b})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("an external id can move to another product", func(t *testing.T) {
		other, err := f.repo.FindOrCreateProduct(ctx, "Smartphone Apple iPhone XR 128GB", f.category.ID)
		require.NoError(t, err)
		require.NoError(t, f.repo.ReplaceShopCatalog(ctx, f.shop.ID, []*catalog.ProductInfo{f.offer(t, 6, 1, nil)}))

		moved := f.offer(t, 6, 2, nil)
		moved.ProductID = other.ID
		require.NoError(t, f.repo.ReplaceShopCatalog(ctx, f.shop.ID, []*catalog.ProductInfo{moved}))

		items, err := f.repo.GetShopCatalog(ctx, f.shop.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, other.ID, items[0].ProductID)
	})

	t.Run("the schema rejects a second row with the same external id", func(t *testing.T) {
		require.NoError(t, f.repo.ReplaceShopCatalog(ctx, f.shop.ID, []*catalog.ProductInfo{f.offer(t, 8, 1, nil)}))
		dup := models.ProductInfoModelFromDomain(f.offer(t, 8, 1, nil))
		err := f.repo.db.WithContext(ctx).Omit(clause.Associations).Create(dup).Error
		assert.Error(t, err)
	})

	t.Run("offers of another shop are rejected", func(t *testing.T) {
		foreign := f.offer(t, 2, 1, nil)
		err := f.repo.ReplaceShopCatalog(ctx, uuid.New(), []*catalog.ProductInfo{foreign})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestGormCatalogRepository_AdjustStock(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, "Svyaznoy")
	info := f.offer(t, 4216292, 10, nil)
	require.NoError(t, f.repo.ReplaceShopCatalog(ctx, f.shop.ID, []*catalog.ProductInfo{info}))

	qty, err := f.repo.AdjustStock(ctx, info.ID, -4)
	require.NoError(t, err)
	assert.Equal(t, 6, qty)

	qty, err = f.repo.AdjustStock(ctx, info.ID, -7)
	require.Error(t, err)
	assert.Equal(t, 6, qty)
	var stockErr *shared.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, []shared.StockShortage{{ProductInfoID: info.ID, Requested: 7, Available: 6}}, stockErr.Shortages)

	qty, err = f.repo.AdjustStock(ctx, info.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 10, qty)

	_, err = f.repo.AdjustStock(ctx, uuid.New(), -1)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	locked, err := f.repo.LockProductInfos(ctx, []uuid.UUID{info.ID})
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, 10, locked[0].Quantity)
}

func TestGormCatalogRepository_SearchOffers(t *testing.T) {
	ctx := context.Background()
	open := newCatalogFixture(t, "Svyaznoy")
	require.NoError(t, open.repo.ReplaceShopCatalog(ctx, open.shop.ID, []*catalog.ProductInfo{open.offer(t, 1, 5, nil)}))

	closed := seedShop(t, ctx, open.repo, "Euroset")
	require.NoError(t, closed.shop.SetState(identity.SystemActor(), catalog.ShopStateClosed))
	require.NoError(t, open.repo.SaveShop(ctx, closed.shop))
	require.NoError(t, open.repo.ReplaceShopCatalog(ctx, closed.shop.ID, []*catalog.ProductInfo{closed.offer(t, 1, 5, nil)}))

	all, total, err := open.repo.SearchOffers(ctx, catalog.OfferFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	visible, total, err := open.repo.SearchOffers(ctx, catalog.OfferFilter{OnlyOpen: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, visible, 1)
	assert.Equal(t, open.shop.ID, visible[0].ShopID)

	byCategory, _, err := open.repo.SearchOffers(ctx, catalog.OfferFilter{
		Filter:     shared.Filter{Search: "iphone"},
		CategoryID: &open.category.ID,
		ShopID:     &closed.shop.ID,
	})
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)

	none, total, err := open.repo.SearchOffers(ctx, catalog.OfferFilter{Filter: shared.Filter{Search: "samsung"}})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}
