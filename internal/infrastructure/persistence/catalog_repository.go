package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/trade"
	"github.com/procurement/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const catalogBatchSize = 200

// GormCatalogRepository implements catalog.Repository using GORM
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// FindShopByID finds a shop by ID
func (r *GormCatalogRepository) FindShopByID(ctx context.Context, id uuid.UUID) (*catalog.Shop, error) {
	var model models.ShopModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, wrapErr("find shop", err, shared.NewNotFoundError("shop", id))
	}
	return model.ToDomain(), nil
}

// FindShopByOwner finds the shop managed by a shop user
func (r *GormCatalogRepository) FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (*catalog.Shop, error) {
	var model models.ShopModel
	if err := r.db.WithContext(ctx).First(&model, "owner_id = ?", ownerID).Error; err != nil {
		return nil, wrapErr("find shop by owner", err, shared.NewNotFoundError("shop of user", ownerID))
	}
	return model.ToDomain(), nil
}

// FindShopByName finds a shop by its unique name
func (r *GormCatalogRepository) FindShopByName(ctx context.Context, name string) (*catalog.Shop, error) {
	var model models.ShopModel
	if err := r.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		return nil, wrapErr("find shop by name", err, shared.NewNotFoundError("shop", name))
	}
	return model.ToDomain(), nil
}

// LockShop loads the shop under FOR UPDATE
func (r *GormCatalogRepository) LockShop(ctx context.Context, id uuid.UUID) (*catalog.Shop, error) {
	var model models.ShopModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, wrapErr("lock shop", err, shared.NewNotFoundError("shop", id))
	}
	return model.ToDomain(), nil
}

// ShareLockShops loads shops under FOR SHARE. Missing ids are skipped.
func (r *GormCatalogRepository) ShareLockShops(ctx context.Context, ids []uuid.UUID) ([]*catalog.Shop, error) {
	ids = trade.UniqueSortedIDs(ids)
	if len(ids) == 0 {
		return []*catalog.Shop{}, nil
	}
	var shopModels []models.ShopModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&shopModels).Error; err != nil {
		return nil, wrapErr("share-lock shops", err, nil)
	}
	shops := make([]*catalog.Shop, len(shopModels))
	for i := range shopModels {
		shops[i] = shopModels[i].ToDomain()
	}
	return shops, nil
}

// SaveShop inserts or updates a shop
func (r *GormCatalogRepository) SaveShop(ctx context.Context, shop *catalog.Shop) error {
	if err := r.db.WithContext(ctx).Save(models.ShopModelFromDomain(shop)).Error; err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Shop name is already taken")
		}
		return wrapErr("save shop", err, nil)
	}
	return nil
}

// ListShops returns shops with pagination, optionally filtered by name
func (r *GormCatalogRepository) ListShops(ctx context.Context, filter shared.Filter) ([]*catalog.Shop, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.ShopModel{})
	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", likePattern(filter.Search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapErr("count shops", err, nil)
	}

	var shopModels []models.ShopModel
	if err := query.
		Order(shopSort.clause(filter, "name")).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&shopModels).Error; err != nil {
		return nil, 0, wrapErr("list shops", err, nil)
	}
	shops := make([]*catalog.Shop, len(shopModels))
	for i := range shopModels {
		shops[i] = shopModels[i].ToDomain()
	}
	return shops, total, nil
}

// FindOrCreateCategory returns the category with this name, creating it if needed
func (r *GormCatalogRepository) FindOrCreateCategory(ctx context.Context, name string) (*catalog.Category, error) {
	category, err := catalog.NewCategory(name)
	if err != nil {
		return nil, err
	}
	db := r.db.WithContext(ctx)
	model := &models.CategoryModel{Name: category.Name}
	model.FromDomainBaseEntity(category.BaseEntity)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(model).Error; err != nil {
		return nil, wrapErr("create category", err, nil)
	}

	var found models.CategoryModel
	if err := db.First(&found, "name = ?", category.Name).Error; err != nil {
		return nil, wrapErr("find category", err, nil)
	}
	return found.ToDomain(), nil
}

// LinkCategoryToShop records that the shop lists the category. Idempotent.
func (r *GormCatalogRepository) LinkCategoryToShop(ctx context.Context, categoryID, shopID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ShopCategoryModel{ShopID: shopID, CategoryID: categoryID}).Error
	return wrapErr("link category", err, nil)
}

// ListCategories returns all categories, or those listed by one shop
func (r *GormCatalogRepository) ListCategories(ctx context.Context, shopID *uuid.UUID) ([]*catalog.Category, error) {
	query := r.db.WithContext(ctx).Model(&models.CategoryModel{})
	if shopID != nil {
		query = query.
			Joins("JOIN shop_categories ON shop_categories.category_id = categories.id").
			Where("shop_categories.shop_id = ?", *shopID)
	}
	var categoryModels []models.CategoryModel
	if err := query.Select("categories.*").Order("categories.name").Find(&categoryModels).Error; err != nil {
		return nil, wrapErr("list categories", err, nil)
	}
	categories := make([]*catalog.Category, len(categoryModels))
	for i := range categoryModels {
		categories[i] = categoryModels[i].ToDomain()
	}
	return categories, nil
}

// FindOrCreateProduct returns the product with this name, creating it under
// categoryID if needed. An existing product keeps its category.
func (r *GormCatalogRepository) FindOrCreateProduct(ctx context.Context, name string, categoryID uuid.UUID) (*catalog.Product, error) {
	product, err := catalog.NewProduct(name, categoryID)
	if err != nil {
		return nil, err
	}
	db := r.db.WithContext(ctx)
	model := &models.ProductModel{Name: product.Name, CategoryID: product.CategoryID}
	model.FromDomainBaseEntity(product.BaseEntity)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(model).Error; err != nil {
		return nil, wrapErr("create product", err, nil)
	}

	var found models.ProductModel
	if err := db.First(&found, "name = ?", product.Name).Error; err != nil {
		return nil, wrapErr("find product", err, nil)
	}
	return found.ToDomain(), nil
}

// GetShopCatalog returns every offer of the shop ordered by external id
func (r *GormCatalogRepository) GetShopCatalog(ctx context.Context, shopID uuid.UUID) ([]*catalog.ProductInfo, error) {
	var rows []models.ProductInfoModel
	if err := r.db.WithContext(ctx).
		Preload("Parameters.Parameter").
		Where("shop_id = ?", shopID).
		Order("external_id").
		Find(&rows).Error; err != nil {
		return nil, wrapErr("get shop catalog", err, nil)
	}
	return r.hydrate(ctx, rows)
}

// ReplaceShopCatalog makes the shop's offers exactly equal items. Offers whose
// (product, external id) survives keep their id, so order lines stay resolvable;
// the rest are deleted before new rows go in, since external ids are unique per
// shop. Callers hold the shop lock.
func (r *GormCatalogRepository) ReplaceShopCatalog(ctx context.Context, shopID uuid.UUID, items []*catalog.ProductInfo) error {
	db := r.db.WithContext(ctx)

	var existing []models.ProductInfoModel
	if err := db.Select("id", "product_id", "external_id").Where("shop_id = ?", shopID).Find(&existing).Error; err != nil {
		return wrapErr("load shop offers", err, nil)
	}
	existingIDs := make(map[catalog.OfferKey]uuid.UUID, len(existing))
	for _, m := range existing {
		existingIDs[catalog.OfferKey{ProductID: m.ProductID, ExternalID: m.ExternalID}] = m.ID
	}

	now := time.Now()
	seen := make(map[int64]bool, len(items))
	keep := make([]uuid.UUID, 0, len(items))
	inserts := make([]*models.ProductInfoModel, 0, len(items))
	for _, item := range items {
		if item.ShopID != shopID {
			return shared.NewValidationError("Offer %d belongs to another shop", item.ExternalID)
		}
		if seen[item.ExternalID] {
			return shared.NewValidationError("Duplicate offer %d for shop %s", item.ExternalID, shopID)
		}
		seen[item.ExternalID] = true

		key := item.Key()
		id, ok := existingIDs[key]
		if !ok {
			inserts = append(inserts, models.ProductInfoModelFromDomain(item))
			keep = append(keep, item.ID)
			continue
		}
		item.ID = id
		item.UpdatedAt = now
		if err := db.Model(&models.ProductInfoModel{}).Where("id = ?", id).Updates(map[string]any{
			"model":      item.Model,
			"quantity":   item.Quantity,
			"price":      item.Price,
			"price_rrc":  item.PriceRRC,
			"updated_at": now,
		}).Error; err != nil {
			return wrapErr("update offer", err, nil)
		}
		keep = append(keep, id)
	}

	if err := db.
		Where("product_info_id IN (?)", r.db.WithContext(ctx).Model(&models.ProductInfoModel{}).Select("id").Where("shop_id = ?", shopID)).
		Delete(&models.ProductParameterModel{}).Error; err != nil {
		return wrapErr("clear offer parameters", err, nil)
	}

	stale := db.Where("shop_id = ?", shopID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	if err := stale.Delete(&models.ProductInfoModel{}).Error; err != nil {
		return wrapErr("delete stale offers", err, nil)
	}

	if len(inserts) > 0 {
		if err := db.Omit(clause.Associations).CreateInBatches(inserts, catalogBatchSize).Error; err != nil {
			return wrapErr("insert offers", err, nil)
		}
	}

	return r.writeParameters(ctx, items, now)
}

func (r *GormCatalogRepository) writeParameters(ctx context.Context, items []*catalog.ProductInfo, now time.Time) error {
	names := make([]string, 0)
	seen := make(map[string]bool)
	for _, item := range items {
		for _, p := range item.Parameters {
			if !seen[p.Name] {
				seen[p.Name] = true
				names = append(names, p.Name)
			}
		}
	}
	if len(names) == 0 {
		return nil
	}

	db := r.db.WithContext(ctx)
	params := make([]models.ParameterModel, len(names))
	for i, name := range names {
		params[i] = models.ParameterModel{
			BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			Name:      name,
		}
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).CreateInBatches(params, catalogBatchSize).Error; err != nil {
		return wrapErr("create parameters", err, nil)
	}

	var stored []models.ParameterModel
	if err := db.Where("name IN ?", names).Find(&stored).Error; err != nil {
		return wrapErr("load parameters", err, nil)
	}
	paramIDs := make(map[string]uuid.UUID, len(stored))
	for _, p := range stored {
		paramIDs[p.Name] = p.ID
	}

	values := make([]models.ProductParameterModel, 0)
	for _, item := range items {
		for _, p := range item.Parameters {
			values = append(values, models.ProductParameterModel{
				ID:            uuid.New(),
				ProductInfoID: item.ID,
				ParameterID:   paramIDs[p.Name],
				Value:         p.Value,
			})
		}
	}
	if err := db.Omit(clause.Associations).CreateInBatches(values, catalogBatchSize).Error; err != nil {
		return wrapErr("insert offer parameters", err, nil)
	}
	return nil
}

// FindProductInfo finds one offer with its parameters
func (r *GormCatalogRepository) FindProductInfo(ctx context.Context, id uuid.UUID) (*catalog.ProductInfo, error) {
	var row models.ProductInfoModel
	if err := r.db.WithContext(ctx).Preload("Parameters.Parameter").First(&row, "id = ?", id).Error; err != nil {
		return nil, wrapErr("find offer", err, shared.NewNotFoundError("product info", id))
	}
	infos, err := r.hydrate(ctx, []models.ProductInfoModel{row})
	if err != nil {
		return nil, err
	}
	return infos[0], nil
}

// FindProductInfos loads offers in bulk. Missing ids are skipped.
func (r *GormCatalogRepository) FindProductInfos(ctx context.Context, ids []uuid.UUID) ([]*catalog.ProductInfo, error) {
	ids = trade.UniqueSortedIDs(ids)
	if len(ids) == 0 {
		return []*catalog.ProductInfo{}, nil
	}
	var rows []models.ProductInfoModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
		return nil, wrapErr("find offers", err, nil)
	}
	return r.hydrate(ctx, rows)
}

// LockProductInfos loads offers under FOR UPDATE in id order. Missing ids are skipped.
func (r *GormCatalogRepository) LockProductInfos(ctx context.Context, ids []uuid.UUID) ([]*catalog.ProductInfo, error) {
	ids = trade.UniqueSortedIDs(ids)
	if len(ids) == 0 {
		return []*catalog.ProductInfo{}, nil
	}
	var rows []models.ProductInfoModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, wrapErr("lock offers", err, nil)
	}
	infos := make([]*catalog.ProductInfo, len(rows))
	for i := range rows {
		infos[i] = rows[i].ToDomain()
	}
	return infos, nil
}

// AdjustStock changes quantity by delta in a single conditional update, so
// concurrent adjustments can never drive it below zero.
func (r *GormCatalogRepository) AdjustStock(ctx context.Context, productInfoID uuid.UUID, delta int) (int, error) {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.ProductInfoModel{}).
		Where("id = ? AND quantity + ? >= 0", productInfoID, delta).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": time.Now(),
		})
	if result.Error != nil && !IsCheckViolation(result.Error) {
		return 0, wrapErr("adjust stock", result.Error, nil)
	}

	var row models.ProductInfoModel
	if err := db.Select("id", "quantity").First(&row, "id = ?", productInfoID).Error; err != nil {
		return 0, wrapErr("read stock", err, shared.NewNotFoundError("product info", productInfoID))
	}
	if result.Error != nil || result.RowsAffected == 0 {
		return row.Quantity, shared.NewInsufficientStockError(shared.StockShortage{
			ProductInfoID: productInfoID,
			Requested:     -delta,
			Available:     row.Quantity,
		})
	}
	return row.Quantity, nil
}

// SearchOffers lists offers across shops with product details
func (r *GormCatalogRepository) SearchOffers(ctx context.Context, filter catalog.OfferFilter) ([]*catalog.ProductInfo, int64, error) {
	page := filter.Filter.Normalize()
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Joins("JOIN products ON products.id = product_infos.product_id")
		if filter.OnlyOpen {
			db = db.Joins("JOIN shops ON shops.id = product_infos.shop_id").
				Where("shops.state = ?", catalog.ShopStateOpen)
		}
		if filter.ShopID != nil {
			db = db.Where("product_infos.shop_id = ?", *filter.ShopID)
		}
		if filter.CategoryID != nil {
			db = db.Where("products.category_id = ?", *filter.CategoryID)
		}
		if page.Search != "" {
			pattern := likePattern(page.Search)
			db = db.Where("LOWER(products.name) LIKE ? OR LOWER(product_infos.model) LIKE ?", pattern, pattern)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ProductInfoModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, wrapErr("count offers", err, nil)
	}

	var rows []models.ProductInfoModel
	if err := r.db.WithContext(ctx).
		Scopes(scope).
		Select("product_infos.*").
		Preload("Parameters.Parameter").
		Order(offerSort.clause(page, "name")).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, wrapErr("search offers", err, nil)
	}
	infos, err := r.hydrate(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return infos, total, nil
}

// hydrate converts rows and fills product, category and shop names
func (r *GormCatalogRepository) hydrate(ctx context.Context, rows []models.ProductInfoModel) ([]*catalog.ProductInfo, error) {
	infos := make([]*catalog.ProductInfo, len(rows))
	if len(rows) == 0 {
		return infos, nil
	}
	productIDs := make([]uuid.UUID, 0, len(rows))
	shopIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		productIDs = append(productIDs, row.ProductID)
		shopIDs = append(shopIDs, row.ShopID)
	}
	db := r.db.WithContext(ctx)

	var products []models.ProductModel
	if err := db.Where("id IN ?", trade.UniqueSortedIDs(productIDs)).Find(&products).Error; err != nil {
		return nil, wrapErr("load products", err, nil)
	}
	productByID := make(map[uuid.UUID]models.ProductModel, len(products))
	categoryIDs := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		productByID[p.ID] = p
		categoryIDs = append(categoryIDs, p.CategoryID)
	}

	var categories []models.CategoryModel
	if err := db.Where("id IN ?", trade.UniqueSortedIDs(categoryIDs)).Find(&categories).Error; err != nil {
		return nil, wrapErr("load categories", err, nil)
	}
	categoryNames := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	var shops []models.ShopModel
	if err := db.Select("id", "name").Where("id IN ?", trade.UniqueSortedIDs(shopIDs)).Find(&shops).Error; err != nil {
		return nil, wrapErr("load shops", err, nil)
	}
	shopNames := make(map[uuid.UUID]string, len(shops))
	for _, s := range shops {
		shopNames[s.ID] = s.Name
	}

	for i := range rows {
		info := rows[i].ToDomain()
		if p, ok := productByID[info.ProductID]; ok {
			info.ProductName = p.Name
			info.CategoryID = p.CategoryID
			info.CategoryName = categoryNames[p.CategoryID]
		}
		info.ShopName = shopNames[info.ShopID]
		infos[i] = info
	}
	return infos, nil
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

var _ catalog.Repository = (*GormCatalogRepository)(nil)
