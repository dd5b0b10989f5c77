package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/task"
	"github.com/procurement/backend/internal/infrastructure/persistence"
	"github.com/procurement/backend/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// funcHandler adapts a function to task.Handler
type funcHandler struct {
	kind  string
	calls atomic.Int32
	fn    func(ctx context.Context, t *task.Task) ([]byte, error)
}

func (h *funcHandler) Kind() string { return h.kind }

func (h *funcHandler) Handle(ctx context.Context, t *task.Task) ([]byte, error) {
	h.calls.Add(1)
	return h.fn(ctx, t)
}

type queueFixture struct {
	repo     *persistence.GormTaskRepository
	queue    *Queue
	registry *Registry
	metrics  *Metrics
	reg      *prometheus.Registry
}

func newQueueFixture(t *testing.T) *queueFixture {
	t.Helper()
	repo := persistence.NewGormTaskRepository(testutil.NewSQLiteDB(t))
	reg := prometheus.NewRegistry()
	return &queueFixture{
		repo:     repo,
		queue:    NewQueue(repo, 3, nil),
		registry: NewRegistry(),
		metrics:  NewMetrics(reg),
		reg:      reg,
	}
}

func (f *queueFixture) runner(t *testing.T, cfg RunnerConfig) *Runner {
	t.Helper()
	r, err := NewRunner(cfg, f.repo, f.registry, f.metrics, nil)
	require.NoError(t, err)
	return r
}

func testRunnerConfig() RunnerConfig {
	cfg := DefaultRunnerConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.JobTimeout = time.Second
	return cfg
}

func TestQueue_EnqueueAndResult(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture(t)
	owner := uuid.New()

	id, err := f.queue.Enqueue(ctx, "catalog.import", map[string]string{"url": "https://example.com/price.yaml"},
		task.WithCreatedBy(owner), task.WithMaxAttempts(7))
	require.NoError(t, err)

	stored, err := f.queue.Task(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, stored.Status)
	assert.Equal(t, 7, stored.MaxAttempts)
	require.NotNil(t, stored.CreatedBy)
	assert.Equal(t, owner, *stored.CreatedBy)
	assert.JSONEq(t, `{"url":"https://example.com/price.yaml"}`, string(stored.Payload))

	result, err := f.queue.Result(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatePending, result.State)
	assert.Zero(t, result.Attempts)

	_, err = f.queue.Result(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestQueue_DelayedTaskIsNotDue(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture(t)
	f.registry.Register(&funcHandler{kind: "later", fn: func(context.Context, *task.Task) ([]byte, error) { return nil, nil }})

	_, err := f.queue.Enqueue(ctx, "later", nil, task.WithDelay(time.Hour))
	require.NoError(t, err)

	n, err := f.runner(t, testRunnerConfig()).ProcessDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunner_ProcessDue(t *testing.T) {
	ctx := context.Background()

	t.Run("success stores the detail", func(t *testing.T) {
		f := newQueueFixture(t)
		f.registry.Register(&funcHandler{kind: "echo", fn: func(_ context.Context, tk *task.Task) ([]byte, error) {
			return tk.Payload, nil
		}})
		id, err := f.queue.Enqueue(ctx, "echo", map[string]int{"items_imported": 3})
		require.NoError(t, err)

		n, err := f.runner(t, testRunnerConfig()).ProcessDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		result, err := f.queue.Result(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, task.StateSucceeded, result.State)
		assert.Equal(t, 1, result.Attempts)
		assert.JSONEq(t, `{"items_imported":3}`, string(result.Detail))
		assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.runs.WithLabelValues("echo", OutcomeSucceeded)))
	})

	t.Run("retryable failure goes back to pending with backoff", func(t *testing.T) {
		f := newQueueFixture(t)
		f.registry.Register(&funcHandler{kind: "flaky", fn: func(context.Context, *task.Task) ([]byte, error) {
			return nil, shared.NewStorageError("load", errors.New("connection reset"))
		}})
		id, err := f.queue.Enqueue(ctx, "flaky", nil)
		require.NoError(t, err)

		r := f.runner(t, testRunnerConfig())
		_, err = r.ProcessDue(ctx)
		require.NoError(t, err)

		stored, err := f.queue.Task(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, task.StatusPending, stored.Status)
		assert.Equal(t, 1, stored.Attempts)
		assert.True(t, stored.NextRunAt.After(time.Now()))
		assert.Contains(t, stored.LastError, "connection reset")
		assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.failures.WithLabelValues("flaky", ReasonStorage)))

		n, err := r.ProcessDue(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, "backoff keeps the task from being claimed again at once")
	})

	t.Run("retries stop after max attempts", func(t *testing.T) {
		f := newQueueFixture(t)
		handler := &funcHandler{kind: "flaky", fn: func(context.Context, *task.Task) ([]byte, error) {
			return nil, errors.New("upstream unavailable")
		}}
		f.registry.Register(handler)
		id, err := f.queue.Enqueue(ctx, "flaky", nil, task.WithMaxAttempts(2))
		require.NoError(t, err)

		r := f.runner(t, testRunnerConfig())
		clock := time.Now()
		r.now = func() time.Time { return clock }
		for i := 0; i < 3; i++ {
			_, err := r.ProcessDue(ctx)
			require.NoError(t, err)
			clock = clock.Add(time.Hour)
		}

		result, err := f.queue.Result(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, task.StateFailed, result.State)
		assert.Equal(t, 2, result.Attempts)
		assert.Equal(t, int32(2), handler.calls.Load())
	})

	t.Run("validation failure is terminal and keeps the detail", func(t *testing.T) {
		f := newQueueFixture(t)
		f.registry.Register(&funcHandler{kind: "import", fn: func(context.Context, *task.Task) ([]byte, error) {
			return []byte(`{"errors":[{"row":2}]}`), shared.NewValidationError("Price document has 1 invalid row")
		}})
		id, err := f.queue.Enqueue(ctx, "import", nil)
		require.NoError(t, err)

		_, err = f.runner(t, testRunnerConfig()).ProcessDue(ctx)
		require.NoError(t, err)

		result, err := f.queue.Result(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, task.StateFailed, result.State)
		assert.Contains(t, result.Error, "invalid row")
		assert.JSONEq(t, `{"errors":[{"row":2}]}`, string(result.Detail))
	})

	t.Run("lock conflicts retry", func(t *testing.T) {
		f := newQueueFixture(t)
		f.registry.Register(&funcHandler{kind: "confirm", fn: func(context.Context, *task.Task) ([]byte, error) {
			return nil, &pgconn.PgError{Code: "40P01"}
		}})
		id, err := f.queue.Enqueue(ctx, "confirm", nil)
		require.NoError(t, err)

		_, err = f.runner(t, testRunnerConfig()).ProcessDue(ctx)
		require.NoError(t, err)

		stored, err := f.queue.Task(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, task.StatusPending, stored.Status)
		assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.failures.WithLabelValues("confirm", ReasonLockConflict)))
	})

	t.Run("hard timeout is terminal", func(t *testing.T) {
		f := newQueueFixture(t)
		f.registry.Register(&funcHandler{kind: "slow", fn: func(ctx context.Context, _ *task.Task) ([]byte, error) {
			<-ctx.Done()
			return nil, shared.NewStorageError("fetch", ctx.Err())
		}})
		id, err := f.queue.Enqueue(ctx, "slow", nil)
		require.NoError(t, err)

		cfg := testRunnerConfig()
		cfg.KindTimeouts = map[string]time.Duration{"slow": 20 * time.Millisecond}
		_, err = f.runner(t, cfg).ProcessDue(ctx)
		require.NoError(t, err)

		result, err := f.queue.Result(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, task.StateFailed, result.State)
		assert.Contains(t, result.Error, "timeout")
	})

	t.Run("unknown kind and panics fail without retry", func(t *testing.T) {
		f := newQueueFixture(t)
		f.registry.Register(&funcHandler{kind: "broken", fn: func(context.Context, *task.Task) ([]byte, error) {
			panic("nil map")
		}})
		orphan, err := f.queue.Enqueue(ctx, "unknown", nil)
		require.NoError(t, err)
		broken, err := f.queue.Enqueue(ctx, "broken", nil)
		require.NoError(t, err)

		n, err := f.runner(t, testRunnerConfig()).ProcessDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		for _, id := range []uuid.UUID{orphan, broken} {
			result, err := f.queue.Result(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, task.StateFailed, result.State)
		}
		assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.failures.WithLabelValues("unknown", ReasonNoHandler)))
	})

	t.Run("late outcome of a reaped task is discarded", func(t *testing.T) {
		f := newQueueFixture(t)
		f.registry.Register(&funcHandler{kind: "import", fn: func(ctx context.Context, _ *task.Task) ([]byte, error) {
			if _, err := f.repo.FailStale(ctx, time.Now().Add(time.Minute), "worker lost"); err != nil {
				return nil, err
			}
			return []byte(`{"items_imported":1}`), nil
		}})
		id, err := f.queue.Enqueue(ctx, "import", nil)
		require.NoError(t, err)

		core, logs := observer.New(zap.WarnLevel)
		r, err := NewRunner(testRunnerConfig(), f.repo, f.registry, f.metrics, zap.New(core))
		require.NoError(t, err)
		_, err = r.ProcessDue(ctx)
		require.NoError(t, err)

		result, err := f.queue.Result(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, task.StateFailed, result.State)
		assert.Equal(t, "worker lost", result.Error)

		discarded := logs.FilterMessageSnippet("outcome discarded").All()
		require.Len(t, discarded, 1)
		assert.Equal(t, OutcomeSucceeded, discarded[0].ContextMap()["outcome"])
		assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.runs.WithLabelValues("import", OutcomeDiscarded)))
		assert.Zero(t, prom.ToFloat64(f.metrics.runs.WithLabelValues("import", OutcomeSucceeded)))
	})
}

func TestRunner_StartStop(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture(t)
	done := make(chan struct{}, 4)
	f.registry.Register(&funcHandler{kind: "notify", fn: func(context.Context, *task.Task) ([]byte, error) {
		done <- struct{}{}
		return json.Marshal(map[string]bool{"sent": true})
	}})

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		id, err := f.queue.Enqueue(ctx, "notify", map[string]int{"n": i})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	cfg := testRunnerConfig()
	cfg.Workers = 2
	r := f.runner(t, cfg)
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Start(ctx))

	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("tasks were not executed")
		}
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(stopCtx))
	assert.ErrorIs(t, r.Stop(stopCtx), ErrRunnerNotRunning)

	for _, id := range ids {
		result, err := f.queue.Result(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, task.StateSucceeded, result.State)
	}
}

func TestRunnerConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultRunnerConfig().Validate())

	cfg := DefaultRunnerConfig()
	cfg.Workers = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultRunnerConfig()
	cfg.JobTimeout = 0
	_, err := NewRunner(cfg, nil, NewRegistry(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMaintenance_RunOnce(t *testing.T) {
	ctx := context.Background()
	f := newQueueFixture(t)

	stale := task.New("catalog.import", nil, 3)
	require.NoError(t, stale.MarkRunning(time.Now().Add(-time.Hour)))
	require.NoError(t, f.repo.Save(ctx, stale))

	old := task.New("notification.deliver", nil, 3)
	require.NoError(t, old.MarkRunning(time.Now().Add(-30*24*time.Hour)))
	old.MarkSucceeded(nil, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, f.repo.Save(ctx, old))

	_, err := f.queue.Enqueue(ctx, "notification.deliver", nil)
	require.NoError(t, err)

	m, err := NewMaintenance(DefaultMaintenanceConfig(), f.repo, f.metrics, nil)
	require.NoError(t, err)

	report, err := m.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Reaped)
	assert.Equal(t, int64(1), report.Purged)
	assert.Equal(t, int64(1), report.Depth[task.StatusPending])
	assert.Equal(t, int64(1), report.Depth[task.StatusFailed])

	reaped, err := f.queue.Result(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StateFailed, reaped.State)
	assert.Equal(t, "task abandoned by its worker", reaped.Error)

	_, err = f.queue.Result(ctx, old.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.depth.WithLabelValues(string(task.StatusPending))))
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.reaped))
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.purged))
}

func TestMaintenance_Config(t *testing.T) {
	cfg := DefaultMaintenanceConfig()
	cfg.Schedule = "every minute please"
	_, err := NewMaintenance(cfg, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	m, err := NewMaintenance(DefaultMaintenanceConfig(), nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))
}

func TestClassifyFailure(t *testing.T) {
	cases := map[string]error{
		ReasonDeadlineExceeded: context.DeadlineExceeded,
		ReasonLockConflict:     shared.NewStorageError("lock", &pgconn.PgError{Code: "55P03"}),
		ReasonStorage:          shared.NewStorageError("save", errors.New("disk full")),
		ReasonDelivery:         &shared.DeliveryError{Address: "a@example.com", Err: errors.New("refused")},
		ReasonValidation:       shared.NewValidationError("bad"),
		ReasonForbidden:        shared.NewAuthorizationError("nope"),
		ReasonUnknown:          errors.New("boom"),
	}
	for want, err := range cases {
		t.Run(want, func(t *testing.T) {
			assert.Equal(t, want, ClassifyFailure(err))
		})
	}
}
