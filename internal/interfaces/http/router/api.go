package router

import (
	"github.com/gin-gonic/gin"
	_ "github.com/procurement/backend/docs"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/procurement/backend/internal/infrastructure/logger"
	"github.com/procurement/backend/internal/interfaces/http/handler"
	"github.com/procurement/backend/internal/interfaces/http/middleware"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// publicPrefixes are catalog reads served without a token
var publicPrefixes = []string{"/api/v1/shops", "/api/v1/categories", "/api/v1/offers"}

// Handlers bundles the handlers mounted by NewEngine
type Handlers struct {
	Health  *handler.HealthHandler
	Catalog *handler.CatalogHandler
	Partner *handler.PartnerHandler
	Basket  *handler.BasketHandler
	Order   *handler.OrderHandler
	Contact *handler.ContactHandler
	Admin   *handler.AdminHandler
	Task    *handler.TaskHandler
	Profile *handler.ProfileHandler
}

// EngineConfig holds the middleware settings of the API engine
type EngineConfig struct {
	HTTP        config.HTTPConfig
	ServiceName string
	Tracing     bool
	Meter       metric.Meter // nil disables request metrics
	JWT         middleware.JWTMiddlewareConfig
	RateLimiter *middleware.RateLimiter // nil disables rate limiting
	Swagger     middleware.SwaggerConfig
	Logger      *zap.Logger
}

// NewEngine builds the gin engine serving the procurement API
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.SecureWithConfig(middleware.DefaultSecurityConfig()),
		middleware.CORSWithConfig(corsConfig),
	)
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}
	engine.Use(
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.Tracing}),
		middleware.SpanErrorMarker(),
	)
	if cfg.Meter != nil {
		engine.Use(middleware.HTTPMetrics(cfg.Meter, log))
	}

	if h.Health != nil {
		engine.GET("/health", h.Health.Check)
	}

	jwtConfig := cfg.JWT
	jwtConfig.SkipPathPrefixes = append(append([]string(nil), jwtConfig.SkipPathPrefixes...), publicPrefixes...)
	if jwtConfig.Logger == nil {
		jwtConfig.Logger = log
	}

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg.Swagger, middleware.JWTAuthMiddleware(jwtConfig)),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddleware(jwtConfig), middleware.TracingAttributeInjector())
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter))
	}
	r.Register(DomainGroups(h)...)
	api := r.Setup()
	if h.Health != nil {
		api.GET("/health", h.Health.Check)
	}
	return engine
}

// DomainGroups returns the route groups of the API with their role guards
func DomainGroups(h Handlers) []RouteRegistrar {
	catalog := NewDomainGroup("catalog", "").
		GET("/shops", h.Catalog.ListShops).
		GET("/shops/:id/catalog", h.Catalog.GetShopCatalog).
		GET("/categories", h.Catalog.ListCategories).
		GET("/offers", h.Catalog.SearchOffers)

	partner := NewDomainGroup("partner", "/partner").
		Use(middleware.RequireRole(identity.RoleShop)).
		POST("/imports", h.Partner.SubmitImport).
		POST("/imports/url", h.Partner.SubmitImportURL).
		GET("/state", h.Partner.GetState).
		PUT("/state", h.Partner.SetState).
		GET("/orders", h.Partner.ListOrders)

	basket := NewDomainGroup("basket", "/basket").
		Use(middleware.RequireRole(identity.RoleBuyer)).
		GET("", h.Basket.Get).
		POST("/items", h.Basket.AddItem).
		PUT("/items/:item_id", h.Basket.UpdateItem).
		DELETE("/items/:item_id", h.Basket.RemoveItem).
		POST("/place", h.Basket.Place)

	orders := NewDomainGroup("orders", "/orders").
		GET("", h.Order.List).
		GET("/:id", h.Order.Get).
		POST("/:id/cancel", h.Order.Cancel)

	contacts := NewDomainGroup("contacts", "/contacts").
		GET("", h.Contact.List).
		POST("", h.Contact.Create).
		DELETE("/:id", h.Contact.Delete)

	admin := NewDomainGroup("admin", "/admin").
		Use(middleware.RequireAdmin()).
		GET("/orders", h.Admin.ListOrders).
		POST("/orders/:id/status", h.Admin.TransitionOrder).
		PUT("/shops/:id/state", h.Admin.SetShopState)

	tasks := NewDomainGroup("tasks", "/tasks").
		GET("/:id", h.Task.Get)

	profile := NewDomainGroup("profile", "/me").
		GET("", h.Profile.Get).
		PUT("", h.Profile.Update)

	return []RouteRegistrar{catalog, partner, basket, orders, contacts, admin, tasks, profile}
}
