package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/procurement/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUploadRouter(limit int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), BodyLimit(limit))
	router.POST("/partner/import", func(c *gin.Context) {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		c.String(http.StatusAccepted, "%d", len(data))
	})
	return router
}

func TestBodyLimit(t *testing.T) {
	document := "shop: Svyaznoy\ngoods: []\n"

	tests := []struct {
		name          string
		body          string
		contentLength int64
		wantStatus    int
	}{
		{"document within limit", document, int64(len(document)), http.StatusAccepted},
		{"empty body", "", 0, http.StatusAccepted},
		{"declared length over limit", strings.Repeat("x", 200), 200, http.StatusRequestEntityTooLarge},
		{"chunked body over limit", strings.Repeat("x", 200), -1, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/partner/import", strings.NewReader(tt.body))
			req.ContentLength = tt.contentLength
			w := httptest.NewRecorder()
			newUploadRouter(64).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBodyLimit_RejectionEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/partner/import", strings.NewReader(strings.Repeat("x", 100)))
	w := httptest.NewRecorder()
	newUploadRouter(10).ServeHTTP(w, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeTooLarge, resp.Error.Code)
	assert.Equal(t, w.Header().Get(RequestIDHeader), resp.Error.RequestID)
}
