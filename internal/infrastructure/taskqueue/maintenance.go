package taskqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/procurement/backend/internal/domain/task"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// MaintenanceConfig holds configuration for periodic queue upkeep
type MaintenanceConfig struct {
	// Schedule is a cron expression, e.g. "@every 1m"
	Schedule string
	// StaleAfter fails running tasks started longer ago than this.
	// It should exceed the longest job timeout.
	StaleAfter time.Duration
	// Retention is how long finished tasks are kept
	Retention time.Duration
	// RunTimeout bounds one maintenance round
	RunTimeout time.Duration
}

// DefaultMaintenanceConfig returns default maintenance configuration
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Schedule:   "@every 1m",
		StaleAfter: 15 * time.Minute,
		Retention:  7 * 24 * time.Hour,
		RunTimeout: 30 * time.Second,
	}
}

// MaintenanceReport summarizes one maintenance round
type MaintenanceReport struct {
	Reaped int64
	Purged int64
	Depth  map[task.Status]int64
}

// Maintenance reaps abandoned tasks, purges old ones and refreshes gauges
type Maintenance struct {
	config  MaintenanceConfig
	repo    task.Repository
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

// NewMaintenance creates a new Maintenance
func NewMaintenance(config MaintenanceConfig, repo task.Repository, metrics *Metrics, logger *zap.Logger) (*Maintenance, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.StaleAfter <= 0 || config.Retention <= 0 {
		return nil, fmt.Errorf("%w: stale-after and retention must be positive", ErrInvalidConfig)
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultMaintenanceConfig().RunTimeout
	}
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, config.Schedule, err)
	}
	return &Maintenance{
		config:  config,
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Start schedules maintenance rounds
func (m *Maintenance) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isRunning {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(m.config.Schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, m.config.RunTimeout)
		defer cancel()
		if _, err := m.RunOnce(runCtx); err != nil {
			m.logger.Error("Task maintenance failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule task maintenance: %w", err)
	}
	c.Start()
	m.cron = c
	m.isRunning = true

	m.logger.Info("Task maintenance started",
		zap.String("schedule", m.config.Schedule),
		zap.Duration("stale_after", m.config.StaleAfter),
		zap.Duration("retention", m.config.Retention),
	)
	return nil
}

// Stop stops scheduling and waits for a running round
func (m *Maintenance) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	c := m.cron
	m.mu.Unlock()

	select {
	case <-c.Stop().Done():
		m.logger.Info("Task maintenance stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs one maintenance round
func (m *Maintenance) RunOnce(ctx context.Context) (*MaintenanceReport, error) {
	now := m.now()
	report := &MaintenanceReport{}

	reaped, err := m.repo.FailStale(ctx, now.Add(-m.config.StaleAfter), "task abandoned by its worker")
	if err != nil {
		return nil, fmt.Errorf("reap stale tasks: %w", err)
	}
	report.Reaped = reaped
	m.metrics.AddReaped(reaped)

	purged, err := m.repo.DeleteFinishedBefore(ctx, now.Add(-m.config.Retention))
	if err != nil {
		return nil, fmt.Errorf("purge finished tasks: %w", err)
	}
	report.Purged = purged
	m.metrics.AddPurged(purged)

	depth, err := m.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	report.Depth = depth
	m.metrics.SetDepth(depth)

	if reaped > 0 || purged > 0 {
		m.logger.Info("Task maintenance round",
			zap.Int64("reaped", reaped),
			zap.Int64("purged", purged),
			zap.Int64("pending", depth[task.StatusPending]),
		)
	}
	return report, nil
}
