package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/watchtower-api/internal/models"
)

func TestRosterRepositoryReplace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM roster_entries WHERE exam_period_id = $1")).
		WithArgs("period-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO roster_entries")).
		WithArgs(sqlmock.AnyArg(), "period-1", 1, "Indra", 7, "Math", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO roster_entries")).
		WithArgs(sqlmock.AnyArg(), "period-1", 2, "Indra", 7, "Science", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entries := []models.RosterEntry{
		{TeacherName: "Indra", Grade: 7, Subject: models.SubjectMath},
		{TeacherName: "Indra", Grade: 7, Subject: models.SubjectScience},
	}
	require.NoError(t, repo.Replace(context.Background(), nil, "period-1", entries))
	assert.Equal(t, 2, entries[1].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryListByPeriod(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	rows := sqlmock.NewRows([]string{"id", "exam_period_id", "position", "teacher_name", "grade", "subject", "created_at"}).
		AddRow("r-1", "period-1", 1, "Indra", 7, "Math", time.Now()).
		AddRow("r-2", "period-1", 2, "Asha", 4, "English", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM roster_entries WHERE exam_period_id = $1 ORDER BY position ASC")).
		WithArgs("period-1").
		WillReturnRows(rows)

	entries, err := repo.ListByPeriod(context.Background(), "period-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Asha", entries[1].TeacherName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
