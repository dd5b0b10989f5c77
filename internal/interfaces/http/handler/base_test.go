package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/trade"
	"github.com/procurement/backend/internal/infrastructure/logger"
	"github.com/procurement/backend/internal/interfaces/http/dto"
	"github.com/procurement/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	c.Set(logger.GinRequestIDKey, "req-1")
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestBaseHandler_Success(t *testing.T) {
	h := &BaseHandler{}

	c, w := newContext(http.MethodGet, "/")
	h.Success(c, gin.H{"id": 1})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)

	c, w = newContext(http.MethodPost, "/")
	h.Created(c, gin.H{"id": 1})
	assert.Equal(t, http.StatusCreated, w.Code)

	c, w = newContext(http.MethodPost, "/")
	h.Accepted(c, gin.H{"job_id": uuid.New()})
	assert.Equal(t, http.StatusAccepted, w.Code)

	c, w = newContext(http.MethodGet, "/")
	h.SuccessWithMeta(c, []int{1, 2}, 45, 2, 20)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)

	c, w = newContext(http.MethodDelete, "/")
	h.NoContent(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestBaseHandler_HandleError(t *testing.T) {
	productInfoID := uuid.New()
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", shared.NewNotFoundError("order", uuid.New()), http.StatusNotFound, dto.ErrCodeNotFound},
		{"validation", shared.NewValidationError("Quantity must be positive"), http.StatusBadRequest, dto.ErrCodeValidation},
		{"forbidden", shared.NewAuthorizationError("Only buyers may place orders"), http.StatusForbidden, dto.ErrCodeForbidden},
		{"invalid state", shared.NewInvalidTransitionError(trade.OrderStatusPlaced, trade.OrderStatusDelivered), http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"wrapped domain error", fmt.Errorf("placing: %w", shared.NewValidationError("empty basket")), http.StatusBadRequest, dto.ErrCodeValidation},
		{"insufficient stock", shared.NewInsufficientStockError(shared.StockShortage{ProductInfoID: productInfoID, Requested: 3, Available: 1}), http.StatusUnprocessableEntity, dto.ErrCodeInsufficientStock},
		{"storage", shared.NewStorageError("save order", errors.New("connection reset")), http.StatusInternalServerError, dto.ErrCodeStorage},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext(http.MethodGet, "/")
			(&BaseHandler{}).HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}

	t.Run("shortages are listed", func(t *testing.T) {
		c, w := newContext(http.MethodPost, "/")
		(&BaseHandler{}).HandleError(c, shared.NewInsufficientStockError(shared.StockShortage{ProductInfoID: productInfoID, Requested: 3, Available: 1}))
		resp := decode(t, w)
		require.Len(t, resp.Error.Shortages, 1)
		assert.Equal(t, productInfoID, resp.Error.Shortages[0].ProductInfoID)
	})

	t.Run("internal details are hidden", func(t *testing.T) {
		c, w := newContext(http.MethodGet, "/")
		(&BaseHandler{}).HandleError(c, shared.NewStorageError("save order", errors.New("password authentication failed")))
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("nil is ignored", func(t *testing.T) {
		c, w := newContext(http.MethodGet, "/")
		(&BaseHandler{}).HandleError(c, nil)
		assert.Empty(t, w.Body.String())
	})
}

func TestBaseHandler_Actor(t *testing.T) {
	h := &BaseHandler{}

	c, w := newContext(http.MethodGet, "/")
	_, ok := h.actor(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	want := identity.NewActor(uuid.New(), "buyer@example.com", identity.RoleBuyer)
	c, _ = newContext(http.MethodGet, "/")
	c.Set(middleware.ActorKey, want)
	got, ok := h.actor(c)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestBaseHandler_UUIDParams(t *testing.T) {
	h := &BaseHandler{}
	id := uuid.New()

	c, _ := newContext(http.MethodGet, "/")
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	got, ok := h.uuidParam(c, "id")
	assert.True(t, ok)
	assert.Equal(t, id, got)

	c, w := newContext(http.MethodGet, "/")
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	_, ok = h.uuidParam(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, decode(t, w).Error.Code)

	c, _ = newContext(http.MethodGet, "/?shop_id="+id.String())
	shopID, ok := h.uuidQuery(c, "shop_id")
	assert.True(t, ok)
	require.NotNil(t, shopID)
	assert.Equal(t, id, *shopID)

	c, _ = newContext(http.MethodGet, "/")
	shopID, ok = h.uuidQuery(c, "shop_id")
	assert.True(t, ok)
	assert.Nil(t, shopID)

	c, w = newContext(http.MethodGet, "/?shop_id=svyaznoy")
	_, ok = h.uuidQuery(c, "shop_id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
