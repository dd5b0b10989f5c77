package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/procurement/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type basketLine struct {
	ProductInfoID string `json:"product_info_id" binding:"required,uuid"`
	Quantity      int    `json:"quantity" binding:"required,min=1"`
	Note          string `json:"note" binding:"max=5"`
}

func validationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.POST("/basket/items", BodyLimit(256), func(c *gin.Context) {
		var req basketLine
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func postJSON(router *gin.Engine, body string) (*httptest.ResponseRecorder, dto.Response) {
	req := httptest.NewRequest(http.MethodPost, "/basket/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp dto.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHandleValidationError(t *testing.T) {
	router := validationRouter()

	t.Run("field errors use json names", func(t *testing.T) {
		w, resp := postJSON(router, `{"product_info_id": "nope", "quantity": 0, "note": "far too long"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

		messages := map[string]string{}
		for _, d := range resp.Error.Details {
			messages[d.Field] = d.Message
		}
		assert.Equal(t, map[string]string{
			"product_info_id": "Invalid UUID format",
			"quantity":        "This field is required",
			"note":            "Must be at most 5 characters",
		}, messages)
	})

	t.Run("malformed json", func(t *testing.T) {
		w, resp := postJSON(router, `{"quantity": `)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	})

	t.Run("wrong type", func(t *testing.T) {
		w, resp := postJSON(router, `{"product_info_id": "8a1c4d9e-2f6b-4c3a-9d7e-1b2c3d4e5f60", "quantity": "two"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "quantity")
	})

	t.Run("empty body", func(t *testing.T) {
		w, resp := postJSON(router, ``)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "Request body is empty", resp.Error.Message)
	})

	t.Run("valid input passes", func(t *testing.T) {
		w, _ := postJSON(router, `{"product_info_id": "8a1c4d9e-2f6b-4c3a-9d7e-1b2c3d4e5f60", "quantity": 2}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
