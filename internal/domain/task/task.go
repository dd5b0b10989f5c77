package task

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the stored state of a task
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// State is the externally visible outcome of a job
type State string

const (
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Default retry configuration
const (
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = 2 * time.Second
	DefaultMaxBackoff  = 5 * time.Minute
)

// Known job kinds
const (
	KindCatalogImport        = "catalog.import"
	KindNotificationDelivery = "notification.deliver"
)

var (
	// ErrNotClaimable is returned when a runner claims a task that is not pending
	ErrNotClaimable = errors.New("task: only pending tasks can be claimed")

	// ErrAttemptSuperseded is returned when an outcome is recorded for an
	// attempt that no longer owns the task, e.g. after the reaper failed it
	ErrAttemptSuperseded = errors.New("task: attempt no longer owns the task")
)

// Task is a durable unit of background work
type Task struct {
	ID          uuid.UUID
	Kind        string
	Payload     []byte
	Status      Status
	Attempts    int
	MaxAttempts int
	LastError   string
	Result      []byte
	NextRunAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	CreatedBy   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates a pending task due immediately
func New(kind string, payload []byte, maxAttempts int) *Task {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	now := time.Now()
	return &Task{
		ID:          uuid.New(),
		Kind:        kind,
		Payload:     payload,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		NextRunAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkRunning claims the task for one attempt
func (t *Task) MarkRunning(now time.Time) error {
	if t.Status != StatusPending {
		return ErrNotClaimable
	}
	t.Status = StatusRunning
	t.Attempts++
	t.StartedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkSucceeded records the outcome detail of a finished task
func (t *Task) MarkSucceeded(result []byte, now time.Time) {
	t.Status = StatusSucceeded
	t.Result = result
	t.LastError = ""
	t.FinishedAt = &now
	t.UpdatedAt = now
}

// MarkFailed records an attempt failure. Retryable failures go back to
// pending with exponential backoff until MaxAttempts is spent.
func (t *Task) MarkFailed(errMsg string, result []byte, retryable bool, now time.Time) {
	t.LastError = errMsg
	t.Result = result
	t.UpdatedAt = now

	if retryable && t.Attempts < t.MaxAttempts {
		t.Status = StatusPending
		t.NextRunAt = now.Add(Backoff(t.Attempts))
		return
	}
	t.Status = StatusFailed
	t.FinishedAt = &now
}

// Backoff returns the delay after the given attempt: 2s, 4s, 8s... capped.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		return DefaultMaxBackoff
	}
	d := DefaultBaseBackoff * time.Duration(1<<uint(attempt-1))
	if d > DefaultMaxBackoff {
		return DefaultMaxBackoff
	}
	return d
}

// IsFinished reports whether the task reached a terminal state
func (t *Task) IsFinished() bool {
	return t.Status == StatusSucceeded || t.Status == StatusFailed
}

// Result is the polled view of a job
type Result struct {
	JobID    uuid.UUID       `json:"job_id"`
	Kind     string          `json:"kind"`
	State    State           `json:"state"`
	Attempts int             `json:"attempts"`
	Error    string          `json:"error,omitempty"`
	Detail   json.RawMessage `json:"detail,omitempty"`
}

// View maps the stored task to pending, succeeded or failed
func (t *Task) View() Result {
	r := Result{JobID: t.ID, Kind: t.Kind, Attempts: t.Attempts, Error: t.LastError}
	switch t.Status {
	case StatusSucceeded:
		r.State = StateSucceeded
	case StatusFailed:
		r.State = StateFailed
	default:
		r.State = StatePending
	}
	if len(t.Result) > 0 && json.Valid(t.Result) {
		r.Detail = json.RawMessage(t.Result)
	}
	return r
}
