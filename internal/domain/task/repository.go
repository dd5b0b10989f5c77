package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for task persistence
type Repository interface {
	Save(ctx context.Context, t *Task) error
	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)
	// ClaimDue atomically moves up to limit due pending tasks to running.
	// Concurrent claimers never receive the same task.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Task, error)
	// Update stores the outcome of the attempt t holds. It only applies while
	// the stored task is still running that attempt; otherwise it returns
	// ErrAttemptSuperseded and the stored task is left alone.
	Update(ctx context.Context, t *Task) error
	// FailStale fails running tasks started before the cutoff.
	FailStale(ctx context.Context, startedBefore time.Time, reason string) (int64, error)
	// DeleteFinishedBefore purges succeeded and failed tasks.
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

// Queue is the boundary used to submit work and poll its outcome
type Queue interface {
	Enqueue(ctx context.Context, kind string, payload any, opts ...EnqueueOption) (uuid.UUID, error)
	Result(ctx context.Context, id uuid.UUID) (*Result, error)
}

// EnqueueOptions tune a single submission
type EnqueueOptions struct {
	MaxAttempts int
	CreatedBy   *uuid.UUID
	Delay       time.Duration
}

// EnqueueOption configures EnqueueOptions
type EnqueueOption func(*EnqueueOptions)

// WithMaxAttempts overrides the retry budget
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *EnqueueOptions) { o.MaxAttempts = n }
}

// WithCreatedBy records the submitting user
func WithCreatedBy(userID uuid.UUID) EnqueueOption {
	return func(o *EnqueueOptions) { o.CreatedBy = &userID }
}

// WithDelay postpones the first attempt
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *EnqueueOptions) { o.Delay = d }
}

// Handler executes tasks of one kind. The returned detail is stored as the
// job result, also on failure.
type Handler interface {
	Kind() string
	Handle(ctx context.Context, t *Task) (detail []byte, err error)
}
