package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/application/uow"
	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CatalogService serves catalog reads and shop state changes
type CatalogService struct {
	scope       uow.TransactionScope
	catalogRepo catalog.Repository
	logger      *zap.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(scope uow.TransactionScope, catalogRepo catalog.Repository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		scope:       scope,
		catalogRepo: catalogRepo,
		logger:      logger,
	}
}

// ListShops returns a page of shops
func (s *CatalogService) ListShops(ctx context.Context, filter ShopListFilter) ([]ShopResponse, int64, error) {
	shops, total, err := s.catalogRepo.ListShops(ctx, shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
	})
	if err != nil {
		return nil, 0, err
	}
	responses := make([]ShopResponse, len(shops))
	for i, shop := range shops {
		responses[i] = ToShopResponse(shop)
	}
	return responses, total, nil
}

// GetShop returns a shop by ID
func (s *CatalogService) GetShop(ctx context.Context, id uuid.UUID) (*ShopResponse, error) {
	shop, err := s.catalogRepo.FindShopByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToShopResponse(shop)
	return &response, nil
}

// GetShopCatalog returns every offer of a shop
func (s *CatalogService) GetShopCatalog(ctx context.Context, shopID uuid.UUID) ([]OfferResponse, error) {
	if _, err := s.catalogRepo.FindShopByID(ctx, shopID); err != nil {
		return nil, err
	}
	infos, err := s.catalogRepo.GetShopCatalog(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return ToOfferResponses(infos), nil
}

// ListCategories returns all categories, or those a shop lists
func (s *CatalogService) ListCategories(ctx context.Context, filter CategoryListFilter) ([]CategoryResponse, error) {
	categories, err := s.catalogRepo.ListCategories(ctx, filter.ShopID)
	if err != nil {
		return nil, err
	}
	responses := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		responses[i] = ToCategoryResponse(c)
	}
	return responses, nil
}

// SearchOffers lists offers of open shops
func (s *CatalogService) SearchOffers(ctx context.Context, filter OfferListFilter) ([]OfferResponse, int64, error) {
	infos, total, err := s.catalogRepo.SearchOffers(ctx, catalog.OfferFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		ShopID:     filter.ShopID,
		CategoryID: filter.CategoryID,
		OnlyOpen:   true,
	})
	if err != nil {
		return nil, 0, err
	}
	return ToOfferResponses(infos), total, nil
}

// GetPartnerShop returns the shop owned by the caller
func (s *CatalogService) GetPartnerShop(ctx context.Context, actor identity.Actor) (*ShopResponse, error) {
	if !actor.IsShop() {
		return nil, shared.NewAuthorizationError("Only shops have a partner state")
	}
	shop, err := s.catalogRepo.FindShopByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	response := ToShopResponse(shop)
	return &response, nil
}

// SetPartnerState opens or closes the caller's shop
func (s *CatalogService) SetPartnerState(ctx context.Context, actor identity.Actor, req SetShopStateRequest) (*ShopResponse, error) {
	if !actor.IsShop() {
		return nil, shared.NewAuthorizationError("Only shops have a partner state")
	}
	return s.setState(ctx, actor, req, func(repos uow.Repositories) (*catalog.Shop, error) {
		return repos.Catalog().FindShopByOwner(ctx, actor.UserID)
	})
}

// SetShopState opens or closes any shop. Admin only.
func (s *CatalogService) SetShopState(ctx context.Context, actor identity.Actor, shopID uuid.UUID, req SetShopStateRequest) (*ShopResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.NewAuthorizationError("Only admins may change another shop's state")
	}
	return s.setState(ctx, actor, req, func(repos uow.Repositories) (*catalog.Shop, error) {
		return repos.Catalog().FindShopByID(ctx, shopID)
	})
}

func (s *CatalogService) setState(ctx context.Context, actor identity.Actor, req SetShopStateRequest, find func(uow.Repositories) (*catalog.Shop, error)) (*ShopResponse, error) {
	var shop *catalog.Shop
	err := s.scope.Execute(ctx, func(repos uow.Repositories) error {
		found, err := find(repos)
		if err != nil {
			return err
		}
		// Waits for a running import of the same shop.
		shop, err = repos.Catalog().LockShop(ctx, found.ID)
		if err != nil {
			return err
		}
		if err := shop.SetState(actor, catalog.ShopState(req.State)); err != nil {
			return err
		}
		return repos.Catalog().SaveShop(ctx, shop)
	})
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidInput) && !errors.Is(err, shared.ErrForbidden) {
			s.logger.Warn("Shop state change failed", zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Shop state changed",
		zap.String("shop_id", shop.ID.String()),
		zap.String("state", shop.State.String()),
		zap.String("actor_id", actor.UserID.String()))
	response := ToShopResponse(shop)
	return &response, nil
}
