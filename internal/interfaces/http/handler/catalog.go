package handler

import (
	"github.com/gin-gonic/gin"
	catalogapp "github.com/procurement/backend/internal/application/catalog"
)

// CatalogHandler serves the public catalog reads
type CatalogHandler struct {
	BaseHandler
	catalogService *catalogapp.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService *catalogapp.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// ListShops lists shops
// @Summary      List shops
// @Tags         catalog
// @Produce      json
// @Param        search query string false "Search by shop name"
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(100)
// @Param        order_by query string false "Sort field"
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} dto.Response{data=[]catalogapp.ShopResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /shops [get]
func (h *CatalogHandler) ListShops(c *gin.Context) {
	var filter catalogapp.ShopListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	shops, total, err := h.catalogService.ListShops(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, shops, total, filter.Page, filter.PageSize)
}

// GetShopCatalog returns every offer of one shop
// @Summary      Get a shop catalog
// @Description  Every offer of one shop
// @Tags         catalog
// @Produce      json
// @Param        id path string true "Shop ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]catalogapp.OfferResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /shops/{id}/catalog [get]
func (h *CatalogHandler) GetShopCatalog(c *gin.Context) {
	shopID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	offers, err := h.catalogService.GetShopCatalog(c.Request.Context(), shopID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, offers)
}

// ListCategories lists categories, optionally those of one shop
// @Summary      List categories
// @Tags         catalog
// @Produce      json
// @Param        shop_id query string false "Only categories offered by this shop" format(uuid)
// @Success      200 {object} dto.Response{data=[]catalogapp.CategoryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /categories [get]
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	shopID, ok := h.uuidQuery(c, "shop_id")
	if !ok {
		return
	}

	categories, err := h.catalogService.ListCategories(c.Request.Context(), catalogapp.CategoryListFilter{ShopID: shopID})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, categories)
}

// SearchOffers searches offers of open shops
// @Summary      Search offers
// @Description  Offers of shops that are open for orders
// @Tags         catalog
// @Produce      json
// @Param        shop_id query string false "Filter by shop" format(uuid)
// @Param        category_id query string false "Filter by category" format(uuid)
// @Param        search query string false "Search by product name"
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(100)
// @Param        order_by query string false "Sort field"
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} dto.Response{data=[]catalogapp.OfferResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /offers [get]
func (h *CatalogHandler) SearchOffers(c *gin.Context) {
	var filter catalogapp.OfferListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	var ok bool
	if filter.ShopID, ok = h.uuidQuery(c, "shop_id"); !ok {
		return
	}
	if filter.CategoryID, ok = h.uuidQuery(c, "category_id"); !ok {
		return
	}

	offers, total, err := h.catalogService.SearchOffers(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, offers, total, filter.Page, filter.PageSize)
}
