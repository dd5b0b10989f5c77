package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/infrastructure/logger"
	"github.com/procurement/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// PermissionConfig holds configuration for role middleware
type PermissionConfig struct {
	Logger *zap.Logger
	// OnDenied is called instead of the default 403 response (optional)
	OnDenied func(c *gin.Context, allowed []identity.Role)
}

// RequireRole admits callers holding any of the listed roles
func RequireRole(roles ...identity.Role) gin.HandlerFunc {
	return RequireRoleWithConfig(PermissionConfig{}, roles...)
}

// RequireRoleWithConfig creates role middleware with custom config
func RequireRoleWithConfig(cfg PermissionConfig, roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok || !actor.IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, "Authentication required", c.GetString(logger.GinRequestIDKey)))
			return
		}

		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		if cfg.Logger != nil {
			cfg.Logger.Warn("Role check failed",
				zap.String("user_id", actor.UserID.String()),
				zap.String("role", actor.Role.String()),
				zap.Stringers("allowed", roles),
				zap.String("path", c.Request.URL.Path),
			)
		}
		if cfg.OnDenied != nil {
			cfg.OnDenied(c, roles)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeForbidden, "Not authorized to perform this action", c.GetString(logger.GinRequestIDKey)))
	}
}

// RequireAdmin admits administrators only
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(identity.RoleAdmin)
}
