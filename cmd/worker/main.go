package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	catalogapp "github.com/procurement/backend/internal/application/catalog"
	"github.com/procurement/backend/internal/application/notification"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/task"
	"github.com/procurement/backend/internal/infrastructure/cache"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/procurement/backend/internal/infrastructure/logger"
	"github.com/procurement/backend/internal/infrastructure/notify"
	"github.com/procurement/backend/internal/infrastructure/persistence"
	"github.com/procurement/backend/internal/infrastructure/priceimport"
	"github.com/procurement/backend/internal/infrastructure/storage"
	"github.com/procurement/backend/internal/infrastructure/taskqueue"
	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"github.com/procurement/backend/internal/interfaces/http/handler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	log = telemetry.BridgeLogger(log, providers.LoggerProvider(), cfg.Telemetry.ServiceName, zapcore.InfoLevel).
		With(zap.String("component", "worker"))

	log.Info("Starting procurement worker",
		zap.String("env", cfg.App.Env),
		zap.Int("workers", cfg.Worker.Workers),
		zap.String("version", version),
	)

	db, err := persistence.Open(&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh)))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	dbInstrumentation, err := telemetry.InstrumentDB(db.DB, providers.Meter("procurement/worker"), telemetry.DBConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	defer func() {
		_ = dbInstrumentation.Close()
	}()

	scope := persistence.NewGormTransactionScope(db.DB)
	taskRepo := persistence.NewGormTaskRepository(db.DB)
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

	importService := catalogapp.NewImportService(scope, queue, archive,
		priceimport.NewHTTPFetcher(priceimport.FetcherConfig{Timeout: cfg.Import.FetchTimeout, MaxBytes: cfg.Import.MaxDocumentBytes}),
		catalogapp.ImportConfig{
			MaxDocumentBytes: cfg.Import.MaxDocumentBytes,
			MaxAttempts:      cfg.Import.MaxAttempts,
			MaxErrors:        cfg.Import.MaxErrors,
		}, log)

	store, err := cache.NewIdempotencyStore(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to initialize delivery dedupe store", zap.Error(err))
	}
	defer func() {
		_ = store.Close()
	}()

	registry := taskqueue.NewRegistry(
		catalogapp.NewImportJobHandler(importService),
		notification.NewDeliveryHandler(newNotifier(cfg.Notification, log), store,
			shared.IdempotencyConfig{TTL: cfg.Notification.DedupeTTL, Enabled: true}, log),
	)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := taskqueue.NewMetrics(promRegistry)

	runner, err := taskqueue.NewRunner(taskqueue.RunnerConfig{
		Workers:      cfg.Worker.Workers,
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		JobTimeout:   cfg.Worker.JobTimeout,
		KindTimeouts: map[string]time.Duration{task.KindCatalogImport: cfg.Import.JobTimeout},
	}, taskRepo, registry, metrics, log)
	if err != nil {
		log.Fatal("Failed to create task runner", zap.Error(err))
	}

	maintenance, err := taskqueue.NewMaintenance(taskqueue.MaintenanceConfig{
		Schedule:   cfg.Worker.MaintenanceSchedule,
		StaleAfter: cfg.Worker.StaleAfter(cfg.Import.JobTimeout),
		Retention:  cfg.Worker.Retention,
		RunTimeout: 30 * time.Second,
	}, taskRepo, metrics, log)
	if err != nil {
		log.Fatal("Failed to create queue maintenance", zap.Error(err))
	}

	if err := runner.Start(ctx); err != nil {
		log.Fatal("Failed to start task runner", zap.Error(err))
	}
	if err := maintenance.Start(ctx); err != nil {
		log.Fatal("Failed to start queue maintenance", zap.Error(err))
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logger.Recovery(log))
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{Registry: promRegistry})))
	engine.GET("/healthz", handler.NewHealthHandler(db, version).Check)

	srv := &http.Server{
		Addr:              ":" + cfg.Worker.MetricsPort,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Worker metrics listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()
	if err := maintenance.Stop(shutdownCtx); err != nil {
		log.Warn("Queue maintenance did not stop cleanly", zap.Error(err))
	}
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Warn("Task runner did not drain in time", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Metrics server forced to shutdown", zap.Error(err))
	}
	log.Info("Worker exited gracefully")
}

func newNotifier(cfg config.NotificationConfig, log *zap.Logger) notify.Notifier {
	if cfg.Transport == config.NotifierMail {
		return notify.NewHTTPMailer(notify.HTTPMailerConfig{
			BaseURL: cfg.MailBaseURL,
			APIKey:  cfg.MailAPIKey,
			From:    cfg.MailFrom,
			Timeout: cfg.MailTimeout,
		})
	}
	return notify.NewLogNotifier(log)
}
