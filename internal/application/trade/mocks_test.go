package trade

import (
	"context"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/trade"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is a mock implementation of trade.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.Order), args.Error(1)
}

func (m *MockOrderRepository) LockByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.Order), args.Error(1)
}

func (m *MockOrderRepository) FindBasket(ctx context.Context, buyerID uuid.UUID) (*trade.Order, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAll(ctx context.Context, filter trade.OrderFilter) ([]*trade.Order, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*trade.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *trade.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// MockCatalogRepository is a mock implementation of catalog.Repository.
// Only the methods used by order flows are expected to be called.
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) FindShopByID(ctx context.Context, id uuid.UUID) (*catalog.Shop, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Shop), args.Error(1)
}

func (m *MockCatalogRepository) FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (*catalog.Shop, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Shop), args.Error(1)
}

func (m *MockCatalogRepository) FindShopByName(ctx context.Context, name string) (*catalog.Shop, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Shop), args.Error(1)
}

func (m *MockCatalogRepository) LockShop(ctx context.Context, id uuid.UUID) (*catalog.Shop, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Shop), args.Error(1)
}

func (m *MockCatalogRepository) ShareLockShops(ctx context.Context, ids []uuid.UUID) ([]*catalog.Shop, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Shop), args.Error(1)
}

func (m *MockCatalogRepository) SaveShop(ctx context.Context, shop *catalog.Shop) error {
	return m.Called(ctx, shop).Error(0)
}

func (m *MockCatalogRepository) ListShops(ctx context.Context, filter shared.Filter) ([]*catalog.Shop, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*catalog.Shop), args.Get(1).(int64), args.Error(2)
}

func (m *MockCatalogRepository) FindOrCreateCategory(ctx context.Context, name string) (*catalog.Category, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCatalogRepository) LinkCategoryToShop(ctx context.Context, categoryID, shopID uuid.UUID) error {
	return m.Called(ctx, categoryID, shopID).Error(0)
}

func (m *MockCatalogRepository) ListCategories(ctx context.Context, shopID *uuid.UUID) ([]*catalog.Category, error) {
	args := m.Called(ctx, shopID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Category), args.Error(1)
}

func (m *MockCatalogRepository) FindOrCreateProduct(ctx context.Context, name string, categoryID uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, name, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogRepository) GetShopCatalog(ctx context.Context, shopID uuid.UUID) ([]*catalog.ProductInfo, error) {
	args := m.Called(ctx, shopID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.ProductInfo), args.Error(1)
}

func (m *MockCatalogRepository) ReplaceShopCatalog(ctx context.Context, shopID uuid.UUID, items []*catalog.ProductInfo) error {
	return m.Called(ctx, shopID, items).Error(0)
}

func (m *MockCatalogRepository) FindProductInfo(ctx context.Context, id uuid.UUID) (*catalog.ProductInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.ProductInfo), args.Error(1)
}

func (m *MockCatalogRepository) FindProductInfos(ctx context.Context, ids []uuid.UUID) ([]*catalog.ProductInfo, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.ProductInfo), args.Error(1)
}

func (m *MockCatalogRepository) LockProductInfos(ctx context.Context, ids []uuid.UUID) ([]*catalog.ProductInfo, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.ProductInfo), args.Error(1)
}

func (m *MockCatalogRepository) AdjustStock(ctx context.Context, productInfoID uuid.UUID, delta int) (int, error) {
	args := m.Called(ctx, productInfoID, delta)
	return args.Int(0), args.Error(1)
}

func (m *MockCatalogRepository) SearchOffers(ctx context.Context, filter catalog.OfferFilter) ([]*catalog.ProductInfo, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*catalog.ProductInfo), args.Get(1).(int64), args.Error(2)
}

// MockContactRepository is a mock implementation of identity.ContactRepository
type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Contact), args.Error(1)
}

func (m *MockContactRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*identity.Contact, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*identity.Contact), args.Error(1)
}

func (m *MockContactRepository) Save(ctx context.Context, contact *identity.Contact) error {
	return m.Called(ctx, contact).Error(0)
}

func (m *MockContactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) {
	m.Called(ctx, events)
}

var (
	_ trade.OrderRepository      = (*MockOrderRepository)(nil)
	_ catalog.Repository         = (*MockCatalogRepository)(nil)
	_ identity.ContactRepository = (*MockContactRepository)(nil)
	_ shared.EventPublisher      = (*MockEventPublisher)(nil)
)
