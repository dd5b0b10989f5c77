package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
)

// OfferFilter narrows offer searches
type OfferFilter struct {
	shared.Filter
	ShopID     *uuid.UUID
	CategoryID *uuid.UUID
	OnlyOpen   bool
}

// Repository is the catalog store. Lock-taking methods must run inside a transaction.
type Repository interface {
	FindShopByID(ctx context.Context, id uuid.UUID) (*Shop, error)
	FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (*Shop, error)
	FindShopByName(ctx context.Context, name string) (*Shop, error)
	// LockShop takes the per-shop catalog lock exclusively (imports).
	LockShop(ctx context.Context, id uuid.UUID) (*Shop, error)
	// ShareLockShops takes the per-shop lock in shared mode, in id order (order transitions).
	ShareLockShops(ctx context.Context, ids []uuid.UUID) ([]*Shop, error)
	SaveShop(ctx context.Context, shop *Shop) error
	ListShops(ctx context.Context, filter shared.Filter) ([]*Shop, int64, error)

	FindOrCreateCategory(ctx context.Context, name string) (*Category, error)
	LinkCategoryToShop(ctx context.Context, categoryID, shopID uuid.UUID) error
	ListCategories(ctx context.Context, shopID *uuid.UUID) ([]*Category, error)

	FindOrCreateProduct(ctx context.Context, name string, categoryID uuid.UUID) (*Product, error)

	// GetShopCatalog returns every offer of the shop with its parameters.
	GetShopCatalog(ctx context.Context, shopID uuid.UUID) ([]*ProductInfo, error)
	// ReplaceShopCatalog makes the shop's offers exactly equal items.
	ReplaceShopCatalog(ctx context.Context, shopID uuid.UUID, items []*ProductInfo) error
	FindProductInfo(ctx context.Context, id uuid.UUID) (*ProductInfo, error)
	FindProductInfos(ctx context.Context, ids []uuid.UUID) ([]*ProductInfo, error)
	// LockProductInfos row-locks offers for update, in id order.
	LockProductInfos(ctx context.Context, ids []uuid.UUID) ([]*ProductInfo, error)
	// AdjustStock adds delta to the quantity and returns the new value.
	// It fails with InsufficientStockError instead of going below zero.
	AdjustStock(ctx context.Context, productInfoID uuid.UUID, delta int) (int, error)
	SearchOffers(ctx context.Context, filter OfferFilter) ([]*ProductInfo, int64, error)
}
