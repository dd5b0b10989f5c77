package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/procurement/backend/internal/infrastructure/priceimport"
	"github.com/shopspring/decimal"
)

// ShopListFilter represents filter options for the shop list
type ShopListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// OfferListFilter represents filter options for offer search
type OfferListFilter struct {
	ShopID     *uuid.UUID `form:"-"`
	CategoryID *uuid.UUID `form:"-"`
	Search     string     `form:"search"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// CategoryListFilter narrows categories to one shop
type CategoryListFilter struct {
	ShopID *uuid.UUID `form:"-"`
}

// SetShopStateRequest represents a request to open or close a shop
type SetShopStateRequest struct {
	State string `json:"state" binding:"required,oneof=open closed"`
}

// SubmitImportURLRequest asks for a price list to be fetched and imported
type SubmitImportURLRequest struct {
	URL string `json:"url" binding:"required,url,max=500"`
}

// ShopResponse represents a shop in API responses
type ShopResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url,omitempty"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ParameterResponse is one name/value attribute of an offer
type ParameterResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OfferResponse represents a shop's offer of a product
type OfferResponse struct {
	ID           uuid.UUID           `json:"id"`
	ShopID       uuid.UUID           `json:"shop_id"`
	ShopName     string              `json:"shop_name,omitempty"`
	ProductID    uuid.UUID           `json:"product_id"`
	ProductName  string              `json:"product_name"`
	CategoryID   uuid.UUID           `json:"category_id"`
	CategoryName string              `json:"category_name"`
	ExternalID   int64               `json:"external_id"`
	Model        string              `json:"model,omitempty"`
	Quantity     int                 `json:"quantity"`
	Price        decimal.Decimal     `json:"price"`
	PriceRRC     decimal.Decimal     `json:"price_rrc"`
	Parameters   []ParameterResponse `json:"parameters"`
}

// ImportAcceptedResponse acknowledges a queued import
type ImportAcceptedResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// ImportResult is the outcome of one catalog import and the job result detail
type ImportResult struct {
	ShopID        uuid.UUID              `json:"shop_id"`
	ItemsImported int                    `json:"items_imported"`
	Errors        []priceimport.RowError `json:"errors"`
	TotalErrors   int                    `json:"total_errors,omitempty"`
	IsTruncated   bool                   `json:"is_truncated,omitempty"`
}

// ToShopResponse converts a domain Shop to ShopResponse
func ToShopResponse(s *catalog.Shop) ShopResponse {
	return ShopResponse{
		ID:        s.ID,
		Name:      s.Name,
		URL:       s.URL,
		State:     s.State.String(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// ToCategoryResponse converts a domain Category to CategoryResponse
func ToCategoryResponse(c *catalog.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name}
}

// ToOfferResponse converts a domain ProductInfo to OfferResponse
func ToOfferResponse(p *catalog.ProductInfo) OfferResponse {
	params := make([]ParameterResponse, len(p.Parameters))
	for i, param := range p.Parameters {
		params[i] = ParameterResponse{Name: param.Name, Value: param.Value}
	}
	return OfferResponse{
		ID:           p.ID,
		ShopID:       p.ShopID,
		ShopName:     p.ShopName,
		ProductID:    p.ProductID,
		ProductName:  p.ProductName,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
		ExternalID:   p.ExternalID,
		Model:        p.Model,
		Quantity:     p.Quantity,
		Price:        p.Price,
		PriceRRC:     p.PriceRRC,
		Parameters:   params,
	}
}

// ToOfferResponses converts a slice of offers
func ToOfferResponses(infos []*catalog.ProductInfo) []OfferResponse {
	responses := make([]OfferResponse, len(infos))
	for i, info := range infos {
		responses[i] = ToOfferResponse(info)
	}
	return responses
}
