package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/task"
	applog "github.com/procurement/backend/internal/infrastructure/logger"
	"github.com/procurement/backend/internal/infrastructure/persistence"
	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// Workers bounds the tasks executing at once
	Workers int
	// PollInterval is how often due tasks are claimed
	PollInterval time.Duration
	// BatchSize caps the tasks claimed per poll
	BatchSize int
	// JobTimeout is the hard timeout of one attempt
	JobTimeout time.Duration
	// KindTimeouts override JobTimeout per task kind
	KindTimeouts map[string]time.Duration
}

// DefaultRunnerConfig returns default runner configuration
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:      4,
		PollInterval: time.Second,
		BatchSize:    10,
		JobTimeout:   5 * time.Minute,
	}
}

// Validate checks the configuration
func (c RunnerConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c RunnerConfig) timeoutFor(kind string) time.Duration {
	if d, ok := c.KindTimeouts[kind]; ok && d > 0 {
		return d
	}
	return c.JobTimeout
}

// Runner claims due tasks and executes them on a bounded pool
type Runner struct {
	config   RunnerConfig
	repo     task.Repository
	registry *Registry
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time

	slots     chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewRunner creates a new task runner. metrics may be nil.
func NewRunner(config RunnerConfig, repo task.Repository, registry *Registry, metrics *Metrics, logger *zap.Logger) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		config:   config,
		repo:     repo,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		slots:    make(chan struct{}, config.Workers),
	}, nil
}

// Start starts the poll loop
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = true
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.pollLoop(ctx)

	r.logger.Info("Task runner started",
		zap.Int("workers", r.config.Workers),
		zap.Duration("poll_interval", r.config.PollInterval),
		zap.Int("batch_size", r.config.BatchSize),
		zap.Strings("kinds", r.registry.Kinds()),
	)
	return nil
}

// Stop cancels in-flight tasks and waits for them to be recorded
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return ErrRunnerNotRunning
	}
	r.isRunning = false
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Task runner stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Task runner stop timed out")
		return ctx.Err()
	}
}

func (r *Runner) pollLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		r.dispatch(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatch claims no more tasks than there are idle slots, so nothing
// claimed waits behind a busy pool.
func (r *Runner) dispatch(ctx context.Context) {
	limit := min(cap(r.slots)-len(r.slots), r.config.BatchSize)
	if limit <= 0 || ctx.Err() != nil {
		return
	}

	tasks, err := r.claim(ctx, limit)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("Failed to claim tasks", zap.Error(err))
		}
		return
	}

	for _, t := range tasks {
		r.slots <- struct{}{}
		r.wg.Add(1)
		go func(t *task.Task) {
			defer r.wg.Done()
			defer func() { <-r.slots }()
			r.execute(ctx, t)
		}(t)
	}
}

// ProcessDue claims one batch and runs it to completion on the caller's
// goroutine. It returns the number of tasks executed.
func (r *Runner) ProcessDue(ctx context.Context) (int, error) {
	tasks, err := r.claim(ctx, r.config.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, t := range tasks {
		r.execute(ctx, t)
	}
	return len(tasks), nil
}

func (r *Runner) claim(ctx context.Context, limit int) ([]*task.Task, error) {
	start := time.Now()
	tasks, err := r.repo.ClaimDue(ctx, r.now(), limit)
	r.metrics.ObserveClaim(time.Since(start))
	return tasks, err
}

func (r *Runner) execute(ctx context.Context, t *task.Task) {
	start := time.Now()
	ctx, logger := applog.WithTask(ctx, r.logger, t.ID.String(), t.Kind, t.Attempts)
	ctx, span := telemetry.StartSpan(ctx, "task "+t.Kind,
		telemetry.WithSpanKind(trace.SpanKindConsumer),
		telemetry.WithAttributes(
			telemetry.AttrTaskID.String(t.ID.String()),
			telemetry.AttrTaskKind.String(t.Kind),
			telemetry.AttrTaskAttempt.Int(t.Attempts),
		))

	var (
		detail    []byte
		retryable bool
		err       error
	)
	telemetry.WithProfilingLabels(ctx, func(ctx context.Context) {
		detail, retryable, err = r.run(ctx, t)
	}, "task_kind", t.Kind)
	telemetry.EndSpan(span, err)
	now := r.now()
	outcome := OutcomeSucceeded
	if err == nil {
		t.MarkSucceeded(detail, now)
	} else {
		t.MarkFailed(err.Error(), detail, retryable, now)
		outcome = OutcomeFailed
		if t.Status == task.StatusPending {
			outcome = OutcomeRetried
		}
	}

	// The attempt context may already be done; the outcome must still be stored.
	updateErr := r.repo.Update(context.WithoutCancel(ctx), t)
	if errors.Is(updateErr, task.ErrAttemptSuperseded) {
		r.metrics.ObserveRun(t.Kind, OutcomeDiscarded, time.Since(start), err)
		logger.Warn("Task outcome discarded, attempt no longer owns the task",
			zap.String("outcome", outcome),
			zap.Error(err))
		return
	}
	if updateErr != nil {
		logger.Error("Failed to record task outcome", zap.String("outcome", outcome), zap.Error(updateErr))
	}
	r.metrics.ObserveRun(t.Kind, outcome, time.Since(start), err)

	switch outcome {
	case OutcomeSucceeded:
		logger.Info("Task succeeded", zap.Duration("elapsed", time.Since(start)))
	case OutcomeRetried:
		logger.Warn("Task attempt failed, will retry",
			zap.Time("next_run_at", t.NextRunAt),
			zap.Int("max_attempts", t.MaxAttempts),
			zap.Error(err))
	default:
		logger.Error("Task failed", zap.Error(err))
	}
}

// run invokes the handler under the attempt timeout and decides whether a
// failure may be retried.
func (r *Runner) run(ctx context.Context, t *task.Task) (detail []byte, retryable bool, err error) {
	handler, ok := r.registry.Handler(t.Kind)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrNoHandler, t.Kind)
	}

	timeout := r.config.timeoutFor(t.Kind)
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	detail, panicked, err := safeHandle(attemptCtx, handler, t)
	switch {
	case err == nil:
		return detail, false, nil
	case panicked:
		return detail, false, err
	case ctx.Err() != nil:
		// Shutdown interrupted the attempt; hand the task to the next worker.
		return detail, true, fmt.Errorf("interrupted by shutdown: %w", err)
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		return detail, false, fmt.Errorf("task exceeded %s timeout: %w", timeout, context.DeadlineExceeded)
	}
	return detail, shared.IsRetryable(err) || persistence.IsLockConflict(err), err
}

func safeHandle(ctx context.Context, h task.Handler, t *task.Task) (detail []byte, panicked bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task handler panicked: %v", rec)
			panicked = true
		}
	}()
	detail, err = h.Handle(ctx, t)
	return detail, false, err
}
