package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/watchtower-api/internal/models"
)

// RosterRepository stores roster entries per exam period.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

func (r *RosterRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Replace deletes the current roster of the period and inserts entries in order.
// Positions are reassigned from 1 so reads return entry order.
func (r *RosterRepository) Replace(ctx context.Context, exec sqlx.ExtContext, periodID string, entries []models.RosterEntry) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM roster_entries WHERE exam_period_id = $1`, periodID); err != nil {
		return fmt.Errorf("clear roster entries: %w", err)
	}

	const query = `INSERT INTO roster_entries (id, exam_period_id, position, teacher_name, grade, subject, created_at)
VALUES (:id, :exam_period_id, :position, :teacher_name, :grade, :subject, :created_at)`
	now := time.Now().UTC()
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.ExamPeriodID = periodID
		entry.Position = i + 1
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
			return fmt.Errorf("insert roster entry: %w", err)
		}
	}
	return nil
}

// ListByPeriod returns roster entries in the order they were submitted.
func (r *RosterRepository) ListByPeriod(ctx context.Context, periodID string) ([]models.RosterEntry, error) {
	const query = `SELECT id, exam_period_id, position, teacher_name, grade, subject, created_at
FROM roster_entries WHERE exam_period_id = $1 ORDER BY position ASC`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, periodID); err != nil {
		return nil, fmt.Errorf("list roster entries: %w", err)
	}
	return entries, nil
}
