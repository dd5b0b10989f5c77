// Package job exposes the outcome of background tasks to their submitters.
package job

import (
	"context"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/task"
	"go.uber.org/zap"
)

// JobService answers job polls
type JobService struct {
	repo   task.Repository
	logger *zap.Logger
}

// NewJobService creates a new JobService
func NewJobService(repo task.Repository, logger *zap.Logger) *JobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{repo: repo, logger: logger}
}

// GetResult returns the job state. Only the submitter and admins see a job;
// everyone else gets NotFound.
func (s *JobService) GetResult(ctx context.Context, actor identity.Actor, id uuid.UUID) (*task.Result, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && (t.CreatedBy == nil || !actor.Is(*t.CreatedBy)) {
		s.logger.Debug("Job hidden from non-owner",
			zap.String("job_id", id.String()),
			zap.String("user_id", actor.UserID.String()))
		return nil, shared.NewNotFoundError("job", id)
	}
	result := t.View()
	return &result, nil
}
