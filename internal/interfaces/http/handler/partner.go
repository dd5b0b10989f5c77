package handler

import (
	"github.com/gin-gonic/gin"
	catalogapp "github.com/procurement/backend/internal/application/catalog"
	tradeapp "github.com/procurement/backend/internal/application/trade"
)

// PartnerHandler serves shop owners: price list imports, shop state and
// the orders containing their offers
type PartnerHandler struct {
	BaseHandler
	importService  *catalogapp.ImportService
	catalogService *catalogapp.CatalogService
	orderService   *tradeapp.OrderService
}

// NewPartnerHandler creates a new PartnerHandler
func NewPartnerHandler(importService *catalogapp.ImportService, catalogService *catalogapp.CatalogService, orderService *tradeapp.OrderService) *PartnerHandler {
	return &PartnerHandler{
		importService:  importService,
		catalogService: catalogService,
		orderService:   orderService,
	}
}

// SubmitImport queues the request body as a price document
// @Summary      Import a price document
// @Description  Queues the request body, YAML or JSON, for import into the caller's shop
// @Tags         partner
// @Produce      json
// @Param        document body string true "Price document"
// @Success      202 {object} dto.Response{data=catalogapp.ImportAcceptedResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /partner/imports [post]
func (h *PartnerHandler) SubmitImport(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		h.BindError(c, err)
		return
	}

	accepted, err := h.importService.SubmitDocument(c.Request.Context(), actor, body, c.ContentType())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, accepted)
}

// SubmitImportURL queues a price document download
// @Summary      Import a price document from a URL
// @Tags         partner
// @Accept       json
// @Produce      json
// @Param        request body catalogapp.SubmitImportURLRequest true "Document location"
// @Success      202 {object} dto.Response{data=catalogapp.ImportAcceptedResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /partner/imports/url [post]
func (h *PartnerHandler) SubmitImportURL(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req catalogapp.SubmitImportURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	accepted, err := h.importService.SubmitURL(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, accepted)
}

// GetState returns the caller's shop
// @Summary      Get the partner shop
// @Tags         partner
// @Produce      json
// @Success      200 {object} dto.Response{data=catalogapp.ShopResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /partner/state [get]
func (h *PartnerHandler) GetState(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	shop, err := h.catalogService.GetPartnerShop(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shop)
}

// SetState opens or closes the caller's shop for orders
// @Summary      Open or close the partner shop
// @Tags         partner
// @Accept       json
// @Produce      json
// @Param        request body catalogapp.SetShopStateRequest true "New state"
// @Success      200 {object} dto.Response{data=catalogapp.ShopResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /partner/state [put]
func (h *PartnerHandler) SetState(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req catalogapp.SetShopStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	shop, err := h.catalogService.SetPartnerState(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shop)
}

// ListOrders lists placed orders containing the caller's offers
// @Summary      List orders with the partner's offers
// @Tags         partner
// @Produce      json
// @Param        status query string false "Filter by status"
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(100)
// @Param        order_by query string false "Sort field"
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} dto.Response{data=[]tradeapp.OrderResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /partner/orders [get]
func (h *PartnerHandler) ListOrders(c *gin.Context) {
	listOrders(&h.BaseHandler, h.orderService, c)
}

// listOrders is shared by every role; the service scopes the result to the caller
func listOrders(h *BaseHandler, orders *tradeapp.OrderService, c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var filter tradeapp.OrderListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	list, total, err := orders.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, list, total, filter.Page, filter.PageSize)
}
