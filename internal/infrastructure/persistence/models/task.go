package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/task"
)

// TaskModel is the persistence model for the background task queue
type TaskModel struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey"`
	Kind        string      `gorm:"type:varchar(100);not null;index"`
	Payload     []byte      `gorm:"type:jsonb;not null"`
	Status      task.Status `gorm:"type:varchar(20);not null;index:idx_tasks_status_next_run,priority:1"`
	Attempts    int         `gorm:"not null;default:0"`
	MaxAttempts int         `gorm:"not null;default:5"`
	LastError   string      `gorm:"type:text"`
	Result      []byte      `gorm:"type:jsonb"`
	NextRunAt   time.Time   `gorm:"not null;index:idx_tasks_status_next_run,priority:2"`
	StartedAt   *time.Time
	FinishedAt  *time.Time `gorm:"index"`
	CreatedBy   *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TaskModel) TableName() string {
	return "tasks"
}

// ToDomain converts the persistence model to a domain Task
func (m *TaskModel) ToDomain() *task.Task {
	return &task.Task{
		ID:          m.ID,
		Kind:        m.Kind,
		Payload:     m.Payload,
		Status:      m.Status,
		Attempts:    m.Attempts,
		MaxAttempts: m.MaxAttempts,
		LastError:   m.LastError,
		Result:      m.Result,
		NextRunAt:   m.NextRunAt,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Task
func (m *TaskModel) FromDomain(t *task.Task) {
	m.ID = t.ID
	m.Kind = t.Kind
	m.Payload = t.Payload
	m.Status = t.Status
	m.Attempts = t.Attempts
	m.MaxAttempts = t.MaxAttempts
	m.LastError = t.LastError
	m.Result = t.Result
	m.NextRunAt = t.NextRunAt
	m.StartedAt = t.StartedAt
	m.FinishedAt = t.FinishedAt
	m.CreatedBy = t.CreatedBy
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
}

// TaskModelFromDomain creates a new persistence model from a domain Task
func TaskModelFromDomain(t *task.Task) *TaskModel {
	m := &TaskModel{}
	m.FromDomain(t)
	return m
}
