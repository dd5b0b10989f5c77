package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	identityapp "github.com/procurement/backend/internal/application/identity"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/auth"
	"github.com/procurement/backend/internal/infrastructure/logger"
	"github.com/procurement/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Context keys set by the JWT middleware
const (
	JWTClaimsKey  = "jwt_claims"
	ActorKey      = "actor"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// UserProvisioner maps verified token claims onto a local user
type UserProvisioner interface {
	EnsureUser(ctx context.Context, req identityapp.EnsureUserRequest) (*identityapp.UserResponse, error)
}

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	// JWTService is required for token validation
	JWTService *auth.JWTService
	// Users is optional; when set every request provisions or syncs the caller
	Users UserProvisioner
	// SkipPaths are paths that don't require authentication
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that don't require authentication
	SkipPathPrefixes []string
	Logger           *zap.Logger
}

// DefaultJWTConfig returns default JWT middleware configuration
func DefaultJWTConfig(jwtService *auth.JWTService, users UserProvisioner) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{
		JWTService: jwtService,
		Users:      users,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/metrics",
			"/api/v1/health",
		},
	}
}

// JWTAuthMiddleware authenticates the bearer token and stores the caller's
// identity.Actor in the gin context
func JWTAuthMiddleware(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if skipAuth(c.Request.URL.Path, cfg) {
			c.Next()
			return
		}

		tokenString, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, cfg, auth.ErrInvalidToken, "Missing or malformed authorization header")
			return
		}

		claims, err := cfg.JWTService.ValidateToken(tokenString)
		if err != nil {
			abortUnauthorized(c, cfg, err, "Token validation failed")
			return
		}

		actor, err := resolveActor(c.Request.Context(), cfg, claims)
		if err != nil {
			abortResolveFailure(c, cfg, err)
			return
		}

		c.Set(JWTClaimsKey, claims)
		setActor(c, actor)
		c.Next()
	}
}

func skipAuth(path string, cfg JWTMiddlewareConfig) bool {
	for _, skipPath := range cfg.SkipPaths {
		if path == skipPath {
			return true
		}
	}
	for _, prefix := range cfg.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader(AuthHeaderKey)
	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	return token, token != ""
}

func resolveActor(ctx context.Context, cfg JWTMiddlewareConfig, claims *auth.Claims) (identity.Actor, error) {
	if cfg.Users == nil {
		return claims.Actor()
	}
	userID, err := claims.UserID()
	if err != nil {
		return identity.Actor{}, auth.ErrInvalidClaims
	}
	user, err := cfg.Users.EnsureUser(ctx, identityapp.EnsureUserRequest{
		UserID:    userID,
		Email:     claims.Email,
		Role:      claims.Role,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
	})
	if err != nil {
		return identity.Actor{}, err
	}
	return user.Actor(), nil
}

func setActor(c *gin.Context, actor identity.Actor) {
	c.Set(ActorKey, actor)
	c.Set(logger.GinUserIDKey, actor.UserID.String())
	c.Set(logger.GinRoleKey, actor.Role.String())

	ctx, log := logger.WithActor(c.Request.Context(), logger.GetGinLogger(c), actor.UserID.String(), actor.Role.String())
	c.Set(logger.GinLoggerKey, log)
	c.Request = c.Request.WithContext(ctx)
}

func abortUnauthorized(c *gin.Context, cfg JWTMiddlewareConfig, err error, message string) {
	cfg.Logger.Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)

	code, text := dto.ErrCodeTokenInvalid, "Invalid token"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, text = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		text = "Token is not yet valid"
	case errors.Is(err, auth.ErrMissingUserID), errors.Is(err, auth.ErrInvalidRole), errors.Is(err, auth.ErrInvalidClaims):
		text = "Token claims are invalid"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, text, c.GetString(logger.GinRequestIDKey)))
}

func abortResolveFailure(c *gin.Context, cfg JWTMiddlewareConfig, err error) {
	requestID := c.GetString(logger.GinRequestIDKey)
	switch {
	case errors.Is(err, auth.ErrInvalidClaims):
		abortUnauthorized(c, cfg, err, "Token subject is not a user id")
	case errors.Is(err, shared.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(dto.ErrCodeForbidden, err.Error(), requestID))
	case errors.Is(err, shared.ErrInvalidInput):
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(dto.ErrCodeTokenInvalid, err.Error(), requestID))
	default:
		cfg.Logger.Error("Failed to resolve caller", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(dto.ErrCodeInternal, "An internal error occurred", requestID))
	}
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetActor retrieves the authenticated caller
func GetActor(c *gin.Context) (identity.Actor, bool) {
	if v, exists := c.Get(ActorKey); exists {
		if actor, ok := v.(identity.Actor); ok {
			return actor, true
		}
	}
	return identity.Actor{}, false
}
