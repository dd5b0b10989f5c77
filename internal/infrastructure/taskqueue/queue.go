// Package taskqueue runs durable background tasks stored in the tasks table.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/task"
	"go.uber.org/zap"
)

// Queue persists submitted work for the worker process
type Queue struct {
	repo        task.Repository
	maxAttempts int
	logger      *zap.Logger
}

// NewQueue creates a new Queue. maxAttempts applies when a submission does
// not set its own.
func NewQueue(repo task.Repository, maxAttempts int, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts < 1 {
		maxAttempts = task.DefaultMaxAttempts
	}
	return &Queue{repo: repo, maxAttempts: maxAttempts, logger: logger}
}

// Enqueue stores a pending task with the JSON encoded payload
func (q *Queue) Enqueue(ctx context.Context, kind string, payload any, opts ...task.EnqueueOption) (uuid.UUID, error) {
	options := task.EnqueueOptions{MaxAttempts: q.maxAttempts}
	for _, opt := range opts {
		opt(&options)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}

	t := task.New(kind, data, options.MaxAttempts)
	t.CreatedBy = options.CreatedBy
	if options.Delay > 0 {
		t.NextRunAt = t.NextRunAt.Add(options.Delay)
	}
	if err := q.repo.Save(ctx, t); err != nil {
		return uuid.Nil, err
	}

	q.logger.Debug("Task enqueued",
		zap.String("task_id", t.ID.String()),
		zap.String("kind", kind),
		zap.Int("max_attempts", t.MaxAttempts),
		zap.Time("next_run_at", t.NextRunAt.Truncate(time.Millisecond)),
	)
	return t.ID, nil
}

// Result returns the polled view of a task
func (q *Queue) Result(ctx context.Context, id uuid.UUID) (*task.Result, error) {
	t, err := q.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := t.View()
	return &view, nil
}

// Task returns the stored task, for owner checks by callers
func (q *Queue) Task(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	return q.repo.FindByID(ctx, id)
}

var _ task.Queue = (*Queue)(nil)
