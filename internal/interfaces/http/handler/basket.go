package handler

import (
	"github.com/gin-gonic/gin"
	tradeapp "github.com/procurement/backend/internal/application/trade"
)

// BasketHandler serves the buyer's basket
type BasketHandler struct {
	BaseHandler
	orderService *tradeapp.OrderService
}

// NewBasketHandler creates a new BasketHandler
func NewBasketHandler(orderService *tradeapp.OrderService) *BasketHandler {
	return &BasketHandler{orderService: orderService}
}

// Get returns the caller's basket, empty when none exists yet
// @Summary      Get the basket
// @Tags         basket
// @Produce      json
// @Success      200 {object} dto.Response{data=tradeapp.OrderResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /basket [get]
func (h *BasketHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	basket, err := h.orderService.GetBasket(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, basket)
}

// AddItem adds an offer to the basket
// @Summary      Add an offer to the basket
// @Tags         basket
// @Accept       json
// @Produce      json
// @Param        request body tradeapp.AddBasketItemRequest true "Offer and quantity"
// @Success      200 {object} dto.Response{data=tradeapp.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /basket/items [post]
func (h *BasketHandler) AddItem(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req tradeapp.AddBasketItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	basket, err := h.orderService.AddItem(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, basket)
}

// UpdateItem changes the quantity of a basket line
// @Summary      Change a basket line quantity
// @Tags         basket
// @Accept       json
// @Produce      json
// @Param        item_id path string true "Basket line ID" format(uuid)
// @Param        request body tradeapp.UpdateBasketItemRequest true "New quantity"
// @Success      200 {object} dto.Response{data=tradeapp.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /basket/items/{item_id} [put]
func (h *BasketHandler) UpdateItem(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	itemID, ok := h.uuidParam(c, "item_id")
	if !ok {
		return
	}

	var req tradeapp.UpdateBasketItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	basket, err := h.orderService.UpdateItem(c.Request.Context(), actor, itemID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, basket)
}

// RemoveItem deletes a basket line
// @Summary      Remove a basket line
// @Tags         basket
// @Produce      json
// @Param        item_id path string true "Basket line ID" format(uuid)
// @Success      200 {object} dto.Response{data=tradeapp.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /basket/items/{item_id} [delete]
func (h *BasketHandler) RemoveItem(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	itemID, ok := h.uuidParam(c, "item_id")
	if !ok {
		return
	}

	basket, err := h.orderService.RemoveItem(c.Request.Context(), actor, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, basket)
}

// Place turns the basket into a placed order
// @Summary      Place the basket
// @Tags         basket
// @Accept       json
// @Produce      json
// @Param        request body tradeapp.PlaceOrderRequest false "Delivery contact"
// @Success      200 {object} dto.Response{data=tradeapp.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /basket/place [post]
func (h *BasketHandler) Place(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req tradeapp.PlaceOrderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	order, err := h.orderService.Place(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}
