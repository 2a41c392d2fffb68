package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/ragatool/backend-go/internal/errors"
	"github.com/ragatool/backend-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	task := &models.Task{
		ID:           "t-1",
		CollectionID: "c-1",
		Name:         "import",
		StartTime:    1700000000,
		Status:       models.TaskStatusNew,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "tasks"`)).
		WithArgs("t-1", "c-1", "import", int64(1700000000), "NEW").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), task))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_UpdateStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "tasks" SET "status"=$1 WHERE id = $2`)).
		WithArgs("RUNNING", "t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), "t-1", models.TaskStatusRunning))

	// 记录不存在
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "tasks" SET "status"=$1 WHERE id = $2`)).
		WithArgs("FAILED", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), "missing", models.TaskStatusFailed)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeResourceNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "tasks" WHERE id = $1`)).
		WithArgs("t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "t-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	rows := sqlmock.NewRows([]string{"id", "collection_id", "name", "start_time", "status"}).
		AddRow("t-1", "c-1", "import", int64(1), "RUNNING")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "tasks" WHERE id = $1`)).
		WillReturnRows(rows)

	task, err := repo.Get(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusRunning, task.Status)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "tasks" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.Get(context.Background(), "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeResourceNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_ListAll(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	rows := sqlmock.NewRows([]string{"id", "collection_id", "name", "start_time", "status"}).
		AddRow("t-1", "c-1", "a", int64(1), "NEW").
		AddRow("t-2", "c-1", "b", int64(2), "RUNNING")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "tasks" ORDER BY start_time`)).
		WillReturnRows(rows)

	tasks, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t-2", tasks[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_DeleteAll(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "tasks" WHERE 1 = 1`)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
