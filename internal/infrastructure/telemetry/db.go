package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls database instrumentation
type DBConfig struct {
	TraceEnabled       bool
	LogFullSQL         bool // include query variables in spans
	SlowQueryThreshold time.Duration
}

// DBConfigFrom derives the database settings from the telemetry configuration
func DBConfigFrom(cfg config.TelemetryConfig) DBConfig {
	return DBConfig{
		TraceEnabled:       cfg.Enabled && cfg.DBTraceEnabled,
		LogFullSQL:         cfg.DBLogFullSQL,
		SlowQueryThreshold: cfg.DBSlowQueryThresh,
	}
}

type dbContextKey struct{}

// DBInstrumentation records query counts, latency, slow queries and pool
// usage for a gorm connection, and optionally traces every statement.
type DBInstrumentation struct {
	cfg          DBConfig
	queries      *Counter
	duration     *Histogram
	slow         *Counter
	registration metric.Registration
	logger       *zap.Logger
}

// InstrumentDB registers the callbacks and pool gauges on db
func InstrumentDB(db *gorm.DB, meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBInstrumentation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}

	in := &DBInstrumentation{cfg: cfg, logger: logger}
	var err error
	if in.queries, err = NewCounter(meter, "db_query_total", "Database statements by operation", "{query}"); err != nil {
		return nil, err
	}
	if in.duration, err = NewHistogram(meter, "db_query_duration_seconds", "Database statement latency", "s", DBDurationBuckets); err != nil {
		return nil, err
	}
	if in.slow, err = NewCounter(meter, "db_slow_query_total", "Statements slower than the slow query threshold", "{query}"); err != nil {
		return nil, err
	}

	if cfg.TraceEnabled {
		opts := []otelgorm.Option{otelgorm.WithDBName("procurement")}
		if !cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return nil, err
		}
	}

	for _, op := range []string{"create", "query", "update", "delete", "row", "raw"} {
		if err := in.register(db, op); err != nil {
			return nil, err
		}
	}

	if err := in.observePool(db, meter); err != nil {
		return nil, err
	}

	logger.Info("Database instrumentation registered",
		zap.Bool("tracing", cfg.TraceEnabled),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold))
	return in, nil
}

func (in *DBInstrumentation) register(db *gorm.DB, op string) error {
	before := "telemetry:before_" + op
	after := "telemetry:after_" + op
	anchor := "gorm:" + op
	record := func(tx *gorm.DB) { in.after(tx, op) }

	var errs []error
	switch op {
	case "create":
		errs = append(errs,
			db.Callback().Create().Before(anchor).Register(before, in.before),
			db.Callback().Create().After(anchor).Register(after, record))
	case "query":
		errs = append(errs,
			db.Callback().Query().Before(anchor).Register(before, in.before),
			db.Callback().Query().After(anchor).Register(after, record))
	case "update":
		errs = append(errs,
			db.Callback().Update().Before(anchor).Register(before, in.before),
			db.Callback().Update().After(anchor).Register(after, record))
	case "delete":
		errs = append(errs,
			db.Callback().Delete().Before(anchor).Register(before, in.before),
			db.Callback().Delete().After(anchor).Register(after, record))
	case "row":
		errs = append(errs,
			db.Callback().Row().Before(anchor).Register(before, in.before),
			db.Callback().Row().After(anchor).Register(after, record))
	case "raw":
		errs = append(errs,
			db.Callback().Raw().Before(anchor).Register(before, in.before),
			db.Callback().Raw().After(anchor).Register(after, record))
	}
	return errors.Join(errs...)
}

func (in *DBInstrumentation) before(tx *gorm.DB) {
	if tx.Statement.Context != nil {
		tx.Statement.Context = context.WithValue(tx.Statement.Context, dbContextKey{}, time.Now())
	}
}

func (in *DBInstrumentation) after(tx *gorm.DB, op string) {
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	var elapsed time.Duration
	if start, ok := ctx.Value(dbContextKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}

	operation := operationFor(op, tx.Statement.SQL.String())
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}
	in.queries.Inc(ctx, AttrDBOperation.String(operation))
	in.duration.RecordDuration(ctx, elapsed, AttrDBOperation.String(operation))
	slow := elapsed > in.cfg.SlowQueryThreshold
	if slow {
		in.slow.Inc(ctx, AttrDBTable.String(table))
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.String("db.sql.table", table), attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.RecordError(tx.Error)
		span.SetStatus(codes.Error, tx.Error.Error())
	}
	if slow {
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", in.cfg.SlowQueryThreshold.Milliseconds()),
		))
	}
}

func (in *DBInstrumentation) observePool(db *gorm.DB, meter metric.Meter) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	maxConns, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum open connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}

	in.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(conns, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(conns, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(conns, int64(stats.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
		o.ObserveInt64(maxConns, int64(stats.MaxOpenConnections))
		return nil
	}, conns, maxConns)
	return err
}

// Close stops observing the connection pool
func (in *DBInstrumentation) Close() error {
	if in.registration == nil {
		return nil
	}
	return in.registration.Unregister()
}

func operationFor(op, sql string) string {
	switch op {
	case "create":
		return "INSERT"
	case "query":
		return "SELECT"
	case "update":
		return "UPDATE"
	case "delete":
		return "DELETE"
	}
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, verb) {
			return verb
		}
	}
	return "OTHER"
}
