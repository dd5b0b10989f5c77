package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	identityapp "github.com/procurement/backend/internal/application/identity"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/auth"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/procurement/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func newTestJWTService(expiration time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                testSecret,
		Issuer:                "procurement-identity",
		AccessTokenExpiration: expiration,
	})
}

func issueToken(t *testing.T, svc *auth.JWTService, userID uuid.UUID, role identity.Role) string {
	t.Helper()
	token, _, err := svc.GenerateToken(auth.GenerateTokenInput{
		UserID:    userID,
		Email:     "user@example.com",
		Role:      role,
		FirstName: "Ivan",
		LastName:  "Petrov",
	})
	require.NoError(t, err)
	return token
}

type fakeProvisioner struct {
	calls []identityapp.EnsureUserRequest
	role  string
	err   error
}

func (f *fakeProvisioner) EnsureUser(_ context.Context, req identityapp.EnsureUserRequest) (*identityapp.UserResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	role := req.Role
	if f.role != "" {
		role = f.role
	}
	return &identityapp.UserResponse{ID: req.UserID, Email: req.Email, Role: role, IsActive: true}, nil
}

func authRouter(cfg JWTMiddlewareConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), JWTAuthMiddleware(cfg))
	router.GET("/api/v1/health", func(c *gin.Context) {
		_, ok := GetActor(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})
	router.GET("/api/v1/basket", func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user_id": actor.UserID.String(),
			"role":    actor.Role.String(),
			"claims":  GetJWTClaims(c) != nil,
		})
	})
	return router
}

func serveWithToken(router *gin.Engine, path, header string) (*httptest.ResponseRecorder, dto.Response) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set(AuthHeaderKey, header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp dto.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestJWTAuthMiddleware(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	userID := uuid.New()

	t.Run("valid token resolves the actor through the provisioner", func(t *testing.T) {
		users := &fakeProvisioner{}
		router := authRouter(DefaultJWTConfig(svc, users))

		w, _ := serveWithToken(router, "/api/v1/basket", BearerPrefix+issueToken(t, svc, userID, identity.RoleBuyer))

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, userID.String(), body["user_id"])
		assert.Equal(t, "buyer", body["role"])
		assert.Equal(t, true, body["claims"])

		require.Len(t, users.calls, 1)
		assert.Equal(t, userID, users.calls[0].UserID)
		assert.Equal(t, "user@example.com", users.calls[0].Email)
		assert.Equal(t, "Ivan", users.calls[0].FirstName)
	})

	t.Run("without a provisioner the claims define the actor", func(t *testing.T) {
		router := authRouter(DefaultJWTConfig(svc, nil))

		w, _ := serveWithToken(router, "/api/v1/basket", BearerPrefix+issueToken(t, svc, userID, identity.RoleShop))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"role":"shop"`)
	})

	t.Run("skip paths need no token", func(t *testing.T) {
		router := authRouter(DefaultJWTConfig(svc, nil))

		w, _ := serveWithToken(router, "/api/v1/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"authenticated":false`)
	})

	rejections := []struct {
		name     string
		header   func() string
		wantCode string
	}{
		{"missing header", func() string { return "" }, dto.ErrCodeTokenInvalid},
		{"wrong scheme", func() string { return "Basic abc" }, dto.ErrCodeTokenInvalid},
		{"empty bearer", func() string { return BearerPrefix }, dto.ErrCodeTokenInvalid},
		{"garbage token", func() string { return BearerPrefix + "not.a.jwt" }, dto.ErrCodeTokenInvalid},
		{"foreign signature", func() string {
			other := auth.NewJWTService(config.JWTConfig{Secret: "another-secret-key-of-32-characters", Issuer: "procurement-identity", AccessTokenExpiration: time.Minute})
			return BearerPrefix + issueToken(t, other, userID, identity.RoleBuyer)
		}, dto.ErrCodeTokenInvalid},
		{"expired token", func() string {
			return BearerPrefix + issueToken(t, newTestJWTService(-time.Minute), userID, identity.RoleBuyer)
		}, dto.ErrCodeTokenExpired},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			users := &fakeProvisioner{}
			router := authRouter(DefaultJWTConfig(svc, users))

			w, resp := serveWithToken(router, "/api/v1/basket", tt.header())

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, w.Header().Get(RequestIDHeader), resp.Error.RequestID)
			assert.Empty(t, users.calls)
		})
	}

	t.Run("deactivated user is forbidden", func(t *testing.T) {
		users := &fakeProvisioner{err: shared.NewAuthorizationError("User account is deactivated")}
		router := authRouter(DefaultJWTConfig(svc, users))

		w, resp := serveWithToken(router, "/api/v1/basket", BearerPrefix+issueToken(t, svc, userID, identity.RoleBuyer))

		assert.Equal(t, http.StatusForbidden, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeForbidden, resp.Error.Code)
	})

	t.Run("provisioning failure is an internal error", func(t *testing.T) {
		users := &fakeProvisioner{err: shared.NewStorageError("find user", errors.New("connection reset"))}
		router := authRouter(DefaultJWTConfig(svc, users))

		w, resp := serveWithToken(router, "/api/v1/basket", BearerPrefix+issueToken(t, svc, userID, identity.RoleBuyer))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "connection reset")
	})
}
