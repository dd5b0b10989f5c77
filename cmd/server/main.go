package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	catalogapp "github.com/procurement/backend/internal/application/catalog"
	identityapp "github.com/procurement/backend/internal/application/identity"
	"github.com/procurement/backend/internal/application/job"
	"github.com/procurement/backend/internal/application/notification"
	tradeapp "github.com/procurement/backend/internal/application/trade"
	"github.com/procurement/backend/internal/domain/task"
	"github.com/procurement/backend/internal/infrastructure/auth"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/procurement/backend/internal/infrastructure/event"
	"github.com/procurement/backend/internal/infrastructure/logger"
	"github.com/procurement/backend/internal/infrastructure/persistence"
	"github.com/procurement/backend/internal/infrastructure/priceimport"
	"github.com/procurement/backend/internal/infrastructure/storage"
	"github.com/procurement/backend/internal/infrastructure/taskqueue"
	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"github.com/procurement/backend/internal/interfaces/http/handler"
	"github.com/procurement/backend/internal/interfaces/http/middleware"
	"github.com/procurement/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Procurement API
//	@version		1.0
//	@description	Retail procurement: shop price lists, buyer baskets and the order workflow.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()
	providers, err := telemetry.Setup(ctx, cfg.Telemetry, version, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()
	log = telemetry.BridgeLogger(log, providers.LoggerProvider(), cfg.Telemetry.ServiceName, zapcore.InfoLevel)

	log.Info("Starting procurement API",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.Open(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	meter := providers.Meter("procurement/api")
	dbInstrumentation, err := telemetry.InstrumentDB(db.DB, meter, telemetry.DBConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	defer func() {
		_ = dbInstrumentation.Close()
	}()

	scope := persistence.NewGormTransactionScope(db.DB)
	catalogRepo := persistence.NewGormCatalogRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	taskRepo := persistence.NewGormTaskRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	contactRepo := persistence.NewGormContactRepository(db.DB)

	queue := taskqueue.NewQueue(taskRepo, task.DefaultMaxAttempts, log)

	var archive catalogapp.DocumentArchive
	if cfg.Storage.Enabled {
		s3Archive, err := storage.NewS3DocumentArchive(ctx, cfg.Storage,
			storage.WithLogger(log), storage.WithMaxObjectSize(cfg.Import.MaxDocumentBytes))
		if err != nil {
			log.Fatal("Failed to initialize document archive", zap.Error(err))
		}
		archive = s3Archive
	}

	bus := event.NewBus(log)
	bus.Subscribe(notification.NewDispatcher(userRepo, catalogRepo, queue, cfg.Notification.MaxAttempts, log))

	orderMetrics, err := telemetry.NewOrderMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create order metrics", zap.Error(err))
	}

	userService := identityapp.NewUserService(userRepo, log)
	catalogService := catalogapp.NewCatalogService(scope, catalogRepo, log)
	importService := catalogapp.NewImportService(scope, queue, archive,
		priceimport.NewHTTPFetcher(priceimport.FetcherConfig{Timeout: cfg.Import.FetchTimeout, MaxBytes: cfg.Import.MaxDocumentBytes}),
		catalogapp.ImportConfig{
			MaxDocumentBytes: cfg.Import.MaxDocumentBytes,
			MaxAttempts:      cfg.Import.MaxAttempts,
			MaxErrors:        cfg.Import.MaxErrors,
		}, log)
	orderService := tradeapp.NewOrderService(scope, orderRepo, catalogRepo, log)
	orderService.SetEventPublisher(bus)
	orderService.SetMetrics(orderMetrics)

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	jwtConfig := middleware.DefaultJWTConfig(auth.NewJWTService(cfg.JWT), userService)
	jwtConfig.Logger = log

	engine := router.NewEngine(router.EngineConfig{
		HTTP:        cfg.HTTP,
		ServiceName: cfg.Telemetry.ServiceName,
		Tracing:     providers.Enabled(),
		Meter:       meter,
		JWT:         jwtConfig,
		RateLimiter: limiter,
		Swagger: middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		},
		Logger: log,
	}, router.Handlers{
		Health:  handler.NewHealthHandler(db, version),
		Catalog: handler.NewCatalogHandler(catalogService),
		Partner: handler.NewPartnerHandler(importService, catalogService, orderService),
		Basket:  handler.NewBasketHandler(orderService),
		Order:   handler.NewOrderHandler(orderService),
		Contact: handler.NewContactHandler(identityapp.NewContactService(contactRepo)),
		Admin:   handler.NewAdminHandler(orderService, catalogService),
		Task:    handler.NewTaskHandler(job.NewJobService(taskRepo, log)),
		Profile: handler.NewProfileHandler(userService),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}
