package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/task"
	"github.com/procurement/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository implements task.Repository using GORM
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GormTaskRepository
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

// Save inserts a new task
func (r *GormTaskRepository) Save(ctx context.Context, t *task.Task) error {
	return wrapErr("save task", r.db.WithContext(ctx).Create(models.TaskModelFromDomain(t)).Error, nil)
}

// FindByID finds a task by ID
func (r *GormTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	var model models.TaskModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, wrapErr("find task", err, shared.NewNotFoundError("job", id))
	}
	return model.ToDomain(), nil
}

// ClaimDue locks due pending tasks with FOR UPDATE SKIP LOCKED and marks them
// running in the same transaction.
func (r *GormTaskRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*task.Task, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []*task.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.TaskModel
		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Options:  "SKIP LOCKED",
			}).
			Where("status = ? AND next_run_at <= ?", task.StatusPending, now).
			Order("next_run_at").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		if err := tx.Model(&models.TaskModel{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     task.StatusRunning,
				"attempts":   gorm.Expr("attempts + 1"),
				"started_at": now,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		claimed = make([]*task.Task, 0, len(rows))
		for i := range rows {
			t := rows[i].ToDomain()
			if err := t.MarkRunning(now); err != nil {
				return err
			}
			claimed = append(claimed, t)
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("claim tasks", err, nil)
	}
	return claimed, nil
}

// Update writes the attempt's outcome. The row must still be running the
// same attempt, which keeps a late worker from overwriting a reaped task.
func (r *GormTaskRepository) Update(ctx context.Context, t *task.Task) error {
	model := models.TaskModelFromDomain(t)
	db := r.db.WithContext(ctx)
	result := db.Model(&models.TaskModel{}).
		Where("id = ? AND status = ? AND attempts = ?", t.ID, task.StatusRunning, t.Attempts).
		Updates(map[string]any{
			"status":       model.Status,
			"attempts":     model.Attempts,
			"last_error":   model.LastError,
			"result":       nullableJSON(model.Result),
			"next_run_at":  model.NextRunAt,
			"started_at":   model.StartedAt,
			"finished_at":  model.FinishedAt,
			"max_attempts": model.MaxAttempts,
			"updated_at":   model.UpdatedAt,
		})
	if result.Error != nil {
		return wrapErr("update task", result.Error, nil)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var exists int64
	if err := db.Model(&models.TaskModel{}).Where("id = ?", t.ID).Count(&exists).Error; err != nil {
		return wrapErr("update task", err, nil)
	}
	if exists == 0 {
		return shared.NewNotFoundError("job", t.ID)
	}
	return task.ErrAttemptSuperseded
}

// FailStale fails running tasks whose attempt started before the cutoff.
// They belonged to a worker that died mid-attempt.
func (r *GormTaskRepository) FailStale(ctx context.Context, startedBefore time.Time, reason string) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.TaskModel{}).
		Where("status = ? AND started_at < ?", task.StatusRunning, startedBefore).
		Updates(map[string]any{
			"status":      task.StatusFailed,
			"last_error":  reason,
			"finished_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return 0, wrapErr("fail stale tasks", result.Error, nil)
	}
	return result.RowsAffected, nil
}

// DeleteFinishedBefore purges succeeded and failed tasks
func (r *GormTaskRepository) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ? AND finished_at < ?", []task.Status{task.StatusSucceeded, task.StatusFailed}, before).
		Delete(&models.TaskModel{})
	if result.Error != nil {
		return 0, wrapErr("purge tasks", result.Error, nil)
	}
	return result.RowsAffected, nil
}

// CountByStatus returns count of tasks for each status
func (r *GormTaskRepository) CountByStatus(ctx context.Context) (map[task.Status]int64, error) {
	type statusCount struct {
		Status task.Status
		Count  int64
	}

	var results []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.TaskModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error; err != nil {
		return nil, wrapErr("count tasks", err, nil)
	}

	counts := make(map[task.Status]int64, len(results))
	for _, c := range results {
		counts[c.Status] = c.Count
	}
	return counts, nil
}

// nullableJSON keeps empty results NULL, since jsonb rejects an empty string
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ task.Repository = (*GormTaskRepository)(nil)
