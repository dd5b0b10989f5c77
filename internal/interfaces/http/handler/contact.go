package handler

import (
	"github.com/gin-gonic/gin"
	identityapp "github.com/procurement/backend/internal/application/identity"
)

// ContactHandler manages the caller's delivery contacts
type ContactHandler struct {
	BaseHandler
	contactService *identityapp.ContactService
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(contactService *identityapp.ContactService) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

// List lists the caller's contacts
// @Summary      List contacts
// @Tags         contacts
// @Produce      json
// @Success      200 {object} dto.Response{data=[]identityapp.ContactResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /contacts [get]
func (h *ContactHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	contacts, err := h.contactService.List(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, contacts)
}

// Create adds a contact
// @Summary      Add a contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Param        request body identityapp.CreateContactRequest true "Delivery address"
// @Success      201 {object} dto.Response{data=identityapp.ContactResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /contacts [post]
func (h *ContactHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req identityapp.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	contact, err := h.contactService.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, contact)
}

// Delete removes a contact
// @Summary      Delete a contact
// @Tags         contacts
// @Produce      json
// @Param        id path string true "Contact ID" format(uuid)
// @Success      204
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /contacts/{id} [delete]
func (h *ContactHandler) Delete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	contactID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.contactService.Delete(c.Request.Context(), actor, contactID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
