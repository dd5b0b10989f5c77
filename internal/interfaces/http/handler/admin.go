package handler

import (
	"github.com/gin-gonic/gin"
	catalogapp "github.com/procurement/backend/internal/application/catalog"
	tradeapp "github.com/procurement/backend/internal/application/trade"
)

// AdminHandler serves operator actions on orders and shops
type AdminHandler struct {
	BaseHandler
	orderService   *tradeapp.OrderService
	catalogService *catalogapp.CatalogService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(orderService *tradeapp.OrderService, catalogService *catalogapp.CatalogService) *AdminHandler {
	return &AdminHandler{orderService: orderService, catalogService: catalogService}
}

// ListOrders lists every placed order
// @Summary      List all placed orders
// @Tags         admin
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
// @Router       /admin/orders [get]
func (h *AdminHandler) ListOrders(c *gin.Context) {
	listOrders(&h.BaseHandler, h.orderService, c)
}

// TransitionOrder moves an order to the requested status
// @Summary      Change an order status
// @Description  Confirming reserves stock; a shortage answers 422 with the shortages listed
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body tradeapp.TransitionOrderRequest true "Target status"
// @Success      200 {object} dto.Response{data=tradeapp.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/orders/{id}/status [post]
func (h *AdminHandler) TransitionOrder(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	orderID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var req tradeapp.TransitionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	order, err := h.orderService.Transition(c.Request.Context(), actor, orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// SetShopState opens or closes any shop
// @Summary      Open or close a shop
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Shop ID" format(uuid)
// @Param        request body catalogapp.SetShopStateRequest true "New state"
// @Success      200 {object} dto.Response{data=catalogapp.ShopResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/shops/{id}/state [put]
func (h *AdminHandler) SetShopState(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	shopID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var req catalogapp.SetShopStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	shop, err := h.catalogService.SetShopState(c.Request.Context(), actor, shopID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shop)
}
