package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/watchtower-api/internal/models"
)

func TestExamPeriodRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamPeriodRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exam_periods")).
		WithArgs(sqlmock.AnyArg(), "First Terminal 2081", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	period := &models.ExamPeriod{Name: "First Terminal 2081"}
	require.NoError(t, repo.Create(context.Background(), period))
	assert.NotEmpty(t, period.ID)
	assert.False(t, period.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamPeriodRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamPeriodRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, starts_on, created_at, updated_at FROM exam_periods WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamPeriodRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamPeriodRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM exam_periods")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	rows := sqlmock.NewRows([]string{"id", "name", "starts_on", "created_at", "updated_at"}).
		AddRow("period-2", "Second Terminal", nil, time.Now(), time.Now()).
		AddRow("period-1", "First Terminal", time.Now(), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM exam_periods ORDER BY created_at DESC LIMIT $1 OFFSET $2")).
		WithArgs(20, 0).
		WillReturnRows(rows)

	periods, total, err := repo.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, periods, 2)
	assert.Nil(t, periods[0].StartsOn)
	assert.NotNil(t, periods[1].StartsOn)
	assert.NoError(t, mock.ExpectationsWereMet())
}
