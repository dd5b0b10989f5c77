package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/task"
	"github.com/procurement/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTaskRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewGormTaskRepository(testutil.NewSQLiteDB(t))

	due := task.New(task.KindCatalogImport, []byte(`{"shop_id":"x"}`), 3)
	later := task.New(task.KindNotificationDelivery, []byte(`{}`), 3)
	later.NextRunAt = time.Now().Add(time.Hour)
	require.NoError(t, repo.Save(ctx, due))
	require.NoError(t, repo.Save(ctx, later))

	claimed, err := repo.ClaimDue(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.Equal(t, task.StatusRunning, claimed[0].Status)
	assert.Equal(t, 1, claimed[0].Attempts)

	again, err := repo.ClaimDue(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, again, "running tasks are not claimed twice")

	got := claimed[0]
	got.MarkSucceeded([]byte(`{"items_imported":2}`), time.Now())
	require.NoError(t, repo.Update(ctx, got))

	stored, err := repo.FindByID(ctx, due.ID)
	require.NoError(t, err)
	view := stored.View()
	assert.Equal(t, task.StateSucceeded, view.State)
	assert.JSONEq(t, `{"items_imported":2}`, string(view.Detail))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[task.StatusSucceeded])
	assert.Equal(t, int64(1), counts[task.StatusPending])

	purged, err := repo.DeleteFinishedBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = repo.FindByID(ctx, due.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormTaskRepository_FailStale(t *testing.T) {
	ctx := context.Background()
	repo := NewGormTaskRepository(testutil.NewSQLiteDB(t))

	stuck := task.New(task.KindCatalogImport, []byte(`{}`), 3)
	require.NoError(t, repo.Save(ctx, stuck))
	claimed, err := repo.ClaimDue(ctx, time.Now().Add(-time.Hour), 1)
	require.NoError(t, err)
	assert.Empty(t, claimed, "not yet due at that time")

	claimed, err = repo.ClaimDue(ctx, time.Now(), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	n, err := repo.FailStale(ctx, time.Now().Add(time.Minute), "worker lost")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := repo.FindByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, stored.Status)
	assert.Equal(t, "worker lost", stored.View().Error)
}

func TestGormTaskRepository_UpdateGuardsTheAttempt(t *testing.T) {
	tests := []struct {
		name    string
		interim func(t *testing.T, repo *GormTaskRepository, claimed *task.Task)
		status  task.Status
		errText string
	}{
		{
			name: "reaped task keeps its failure",
			interim: func(t *testing.T, repo *GormTaskRepository, _ *task.Task) {
				n, err := repo.FailStale(context.Background(), time.Now().Add(time.Minute), "worker lost")
				require.NoError(t, err)
				require.Equal(t, int64(1), n)
			},
			status:  task.StatusFailed,
			errText: "worker lost",
		},
		{
			name: "finished task is not written twice",
			interim: func(t *testing.T, repo *GormTaskRepository, claimed *task.Task) {
				first := *claimed
				first.MarkFailed("first outcome", nil, false, time.Now())
				require.NoError(t, repo.Update(context.Background(), &first))
			},
			status:  task.StatusFailed,
			errText: "first outcome",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewGormTaskRepository(testutil.NewSQLiteDB(t))
			require.NoError(t, repo.Save(ctx, task.New(task.KindCatalogImport, []byte(`{}`), 3)))
			claimed, err := repo.ClaimDue(ctx, time.Now(), 1)
			require.NoError(t, err)
			require.Len(t, claimed, 1)

			tt.interim(t, repo, claimed[0])

			late := claimed[0]
			late.MarkSucceeded([]byte(`{"items_imported":1}`), time.Now())
			assert.ErrorIs(t, repo.Update(ctx, late), task.ErrAttemptSuperseded)

			stored, err := repo.FindByID(ctx, late.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, stored.Status)
			assert.Equal(t, tt.errText, stored.View().Error)
		})
	}
}

func TestGormTaskRepository_UpdateMissing(t *testing.T) {
	repo := NewGormTaskRepository(testutil.NewSQLiteDB(t))
	missing := task.New(task.KindCatalogImport, []byte(`{}`), 1)
	missing.ID = uuid.New()
	assert.ErrorIs(t, repo.Update(context.Background(), missing), shared.ErrNotFound)
}

func TestGormTaskRepository_ClaimDueSkipsLockedRows(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := NewGormTaskRepository(mockDB.DB)
	now := time.Now()
	id := uuid.New()

	mockDB.Mock.ExpectBegin()
	mockDB.Mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE SKIP LOCKED`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "payload", "status", "attempts", "max_attempts", "next_run_at", "created_at", "updated_at"}).
			AddRow(id, task.KindCatalogImport, []byte(`{}`), task.StatusPending, 0, 5, now, now, now))
	mockDB.Mock.ExpectExec(`UPDATE "tasks" SET "attempts"=attempts \+ 1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectCommit()

	claimed, err := repo.ClaimDue(context.Background(), now, 5)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, id, claimed[0].ID)
	mockDB.ExpectationsWereMet(t)
}
