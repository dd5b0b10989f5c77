package models

import (
	"sort"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ShopModel is the persistence model for shops. Its row doubles as the
// per-shop catalog lock.
type ShopModel struct {
	AggregateModel
	Name    string            `gorm:"type:varchar(100);not null;uniqueIndex"`
	URL     string            `gorm:"type:varchar(500)"`
	OwnerID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex"`
	State   catalog.ShopState `gorm:"type:varchar(10);not null;default:'open'"`
}

// TableName returns the table name for GORM
func (ShopModel) TableName() string {
	return "shops"
}

// ToDomain converts the persistence model to a domain Shop
func (m *ShopModel) ToDomain() *catalog.Shop {
	return &catalog.Shop{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		URL:               m.URL,
		OwnerID:           m.OwnerID,
		State:             m.State,
	}
}

// ShopModelFromDomain creates a new persistence model from a domain Shop
func ShopModelFromDomain(s *catalog.Shop) *ShopModel {
	m := &ShopModel{Name: s.Name, URL: s.URL, OwnerID: s.OwnerID, State: s.State}
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	return m
}

// CategoryModel is the persistence model for categories
type CategoryModel struct {
	BaseModel
	Name string `gorm:"type:varchar(100);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ToDomain converts the persistence model to a domain Category
func (m *CategoryModel) ToDomain() *catalog.Category {
	return &catalog.Category{BaseEntity: m.BaseModel.ToDomain(), Name: m.Name}
}

// ShopCategoryModel links shops and the categories they list
type ShopCategoryModel struct {
	ShopID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	CategoryID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// TableName returns the table name for GORM
func (ShopCategoryModel) TableName() string {
	return "shop_categories"
}

// ProductModel is the persistence model for shop-independent products
type ProductModel struct {
	BaseModel
	Name       string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	CategoryID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{BaseEntity: m.BaseModel.ToDomain(), Name: m.Name, CategoryID: m.CategoryID}
}

// ProductInfoModel is the persistence model for a shop's offer
type ProductInfoModel struct {
	BaseModel
	ShopID     uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_product_infos_shop_external,priority:1"`
	ProductID  uuid.UUID               `gorm:"type:uuid;not null;index"`
	ExternalID int64                   `gorm:"not null;uniqueIndex:idx_product_infos_shop_external,priority:2"`
	Model      string                  `gorm:"type:varchar(100)"`
	Quantity   int                     `gorm:"not null;check:chk_product_infos_quantity,quantity >= 0"`
	Price      decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	PriceRRC   decimal.Decimal         `gorm:"column:price_rrc;type:decimal(18,2);not null;default:0"`
	Parameters []ProductParameterModel `gorm:"foreignKey:ProductInfoID"`
}

// TableName returns the table name for GORM
func (ProductInfoModel) TableName() string {
	return "product_infos"
}

// ToDomain converts the persistence model to a domain ProductInfo.
// Parameters must be preloaded with their Parameter for names to resolve.
func (m *ProductInfoModel) ToDomain() *catalog.ProductInfo {
	info := &catalog.ProductInfo{
		BaseEntity: m.BaseModel.ToDomain(),
		ShopID:     m.ShopID,
		ProductID:  m.ProductID,
		ExternalID: m.ExternalID,
		Model:      m.Model,
		Quantity:   m.Quantity,
		Price:      m.Price,
		PriceRRC:   m.PriceRRC,
		Parameters: make([]catalog.ProductParameter, 0, len(m.Parameters)),
	}
	for _, p := range m.Parameters {
		info.Parameters = append(info.Parameters, catalog.ProductParameter{Name: p.Parameter.Name, Value: p.Value})
	}
	sort.Slice(info.Parameters, func(i, j int) bool { return info.Parameters[i].Name < info.Parameters[j].Name })
	return info
}

// ProductInfoModelFromDomain creates a new persistence model from a domain ProductInfo.
// Parameters are written separately since they need resolved parameter ids.
func ProductInfoModelFromDomain(p *catalog.ProductInfo) *ProductInfoModel {
	m := &ProductInfoModel{
		ShopID:     p.ShopID,
		ProductID:  p.ProductID,
		ExternalID: p.ExternalID,
		Model:      p.Model,
		Quantity:   p.Quantity,
		Price:      p.Price,
		PriceRRC:   p.PriceRRC,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// ParameterModel is the persistence model for parameter names
type ParameterModel struct {
	BaseModel
	Name string `gorm:"type:varchar(100);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (ParameterModel) TableName() string {
	return "parameters"
}

// ProductParameterModel holds one parameter value of an offer
type ProductParameterModel struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ProductInfoID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_product_parameters_pair,priority:1"`
	ParameterID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_product_parameters_pair,priority:2"`
	Value         string         `gorm:"type:varchar(100);not null"`
	Parameter     ParameterModel `gorm:"foreignKey:ParameterID"`
}

// TableName returns the table name for GORM
func (ProductParameterModel) TableName() string {
	return "product_parameters"
}
