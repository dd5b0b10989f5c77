package taskqueue

import (
	"context"
	"errors"
	"time"

	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/task"
	"github.com/procurement/backend/internal/infrastructure/persistence"
	"github.com/prometheus/client_golang/prometheus"
)

// Task outcomes
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	// OutcomeDiscarded marks an attempt that finished after losing its task
	OutcomeDiscarded = "discarded"
)

// Failure reasons, kept low-cardinality
const (
	ReasonDeadlineExceeded = "deadline_exceeded"
	ReasonLockConflict     = "lock_conflict"
	ReasonStorage          = "storage"
	ReasonDelivery         = "delivery"
	ReasonValidation       = "validation"
	ReasonForbidden        = "forbidden"
	ReasonNoHandler        = "no_handler"
	ReasonUnknown          = "unknown"
)

// Metrics captures task runner health
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	depth       *prometheus.GaugeVec
	reaped      prometheus.Counter
	purged      prometheus.Counter
	pollLatency prometheus.Histogram
}

// NewMetrics registers the task runner collectors. A nil registerer uses the
// default one.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procurement_task_runs_total",
			Help: "Task attempts by kind and outcome.",
		}, []string{"kind", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procurement_task_failures_total",
			Help: "Failed task attempts by kind and reason.",
		}, []string{"kind", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "procurement_task_duration_seconds",
			Help:    "Task attempt latency by kind.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "procurement_task_queue_depth",
			Help: "Stored tasks by status.",
		}, []string{"status"}),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procurement_task_reaped_total",
			Help: "Running tasks failed after their worker went away.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procurement_task_purged_total",
			Help: "Finished tasks removed after retention.",
		}),
		pollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "procurement_task_claim_seconds",
			Help:    "Time spent claiming due tasks.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}

	registerer.MustRegister(m.runs, m.failures, m.duration, m.depth, m.reaped, m.purged, m.pollLatency)
	return m
}

// ObserveRun records one finished attempt
func (m *Metrics) ObserveRun(kind, outcome string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if err != nil {
		m.failures.WithLabelValues(kind, ClassifyFailure(err)).Inc()
	}
}

// ObserveClaim records the latency of one claim round
func (m *Metrics) ObserveClaim(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pollLatency.Observe(elapsed.Seconds())
}

// SetDepth replaces the queue depth gauges
func (m *Metrics) SetDepth(counts map[task.Status]int64) {
	if m == nil {
		return
	}
	for _, status := range []task.Status{task.StatusPending, task.StatusRunning, task.StatusSucceeded, task.StatusFailed} {
		m.depth.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// AddReaped counts stale tasks failed by maintenance
func (m *Metrics) AddReaped(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.reaped.Add(float64(n))
}

// AddPurged counts finished tasks removed by maintenance
func (m *Metrics) AddPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}

// ClassifyFailure maps an attempt error to a metric reason
func ClassifyFailure(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonDeadlineExceeded
	case errors.Is(err, ErrNoHandler):
		return ReasonNoHandler
	case persistence.IsLockConflict(err):
		return ReasonLockConflict
	case errors.Is(err, shared.ErrStorage):
		return ReasonStorage
	case errors.Is(err, shared.ErrDelivery):
		return ReasonDelivery
	case errors.Is(err, shared.ErrForbidden), errors.Is(err, shared.ErrUnauthorized):
		return ReasonForbidden
	case errors.Is(err, shared.ErrInvalidInput):
		return ReasonValidation
	}
	return ReasonUnknown
}
