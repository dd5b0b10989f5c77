package handler

import (
	"github.com/gin-gonic/gin"
	identityapp "github.com/procurement/backend/internal/application/identity"
)

// ProfileHandler serves the caller's own account
type ProfileHandler struct {
	BaseHandler
	userService *identityapp.UserService
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(userService *identityapp.UserService) *ProfileHandler {
	return &ProfileHandler{userService: userService}
}

// Get returns the caller's profile
// @Summary      Get the caller's profile
// @Tags         profile
// @Produce      json
// @Success      200 {object} dto.Response{data=identityapp.UserResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /me [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

// Update changes the caller's name and company details
// @Summary      Update the caller's profile
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        request body identityapp.UpdateProfileRequest true "Profile fields"
// @Success      200 {object} dto.Response{data=identityapp.UserResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /me [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req identityapp.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}
