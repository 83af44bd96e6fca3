package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/watchtower-api/internal/models"
)

// TimetableRepository stores the exam routine per exam period.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Replace swaps the whole timetable of the period.
func (r *TimetableRepository) Replace(ctx context.Context, exec sqlx.ExtContext, periodID string, entries []models.TimetableEntry) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM timetable_entries WHERE exam_period_id = $1`, periodID); err != nil {
		return fmt.Errorf("clear timetable entries: %w", err)
	}

	const query = `INSERT INTO timetable_entries (id, exam_period_id, day, grade, subject, created_at)
VALUES (:id, :exam_period_id, :day, :grade, :subject, :created_at)
ON CONFLICT (exam_period_id, day, grade) DO UPDATE SET subject = EXCLUDED.subject`
	now := time.Now().UTC()
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.ExamPeriodID = periodID
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
			return fmt.Errorf("insert timetable entry: %w", err)
		}
	}
	return nil
}

// ListByPeriod returns timetable entries ordered by day then grade.
func (r *TimetableRepository) ListByPeriod(ctx context.Context, periodID string) ([]models.TimetableEntry, error) {
	const query = `SELECT id, exam_period_id, day, grade, subject, created_at
FROM timetable_entries WHERE exam_period_id = $1 ORDER BY day ASC, grade ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, periodID); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}
