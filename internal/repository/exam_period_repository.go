package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/watchtower-api/internal/models"
)

// ExamPeriodRepository persists exam periods.
type ExamPeriodRepository struct {
	db *sqlx.DB
}

// NewExamPeriodRepository constructs the repository.
func NewExamPeriodRepository(db *sqlx.DB) *ExamPeriodRepository {
	return &ExamPeriodRepository{db: db}
}

func (r *ExamPeriodRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new exam period.
func (r *ExamPeriodRepository) Create(ctx context.Context, period *models.ExamPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if period.CreatedAt.IsZero() {
		period.CreatedAt = now
	}
	period.UpdatedAt = now

	const query = `INSERT INTO exam_periods (id, name, starts_on, created_at, updated_at)
VALUES (:id, :name, :starts_on, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create exam period: %w", err)
	}
	return nil
}

// FindByID loads an exam period. sql.ErrNoRows is returned unwrapped.
func (r *ExamPeriodRepository) FindByID(ctx context.Context, id string) (*models.ExamPeriod, error) {
	const query = `SELECT id, name, starts_on, created_at, updated_at FROM exam_periods WHERE id = $1`
	var period models.ExamPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// List returns a page of exam periods, newest first, and the total count.
func (r *ExamPeriodRepository) List(ctx context.Context, limit, offset int) ([]models.ExamPeriod, int, error) {
	if limit <= 0 {
		limit = 20
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM exam_periods`); err != nil {
		return nil, 0, fmt.Errorf("count exam periods: %w", err)
	}

	const query = `SELECT id, name, starts_on, created_at, updated_at FROM exam_periods ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	periods := make([]models.ExamPeriod, 0)
	if err := r.db.SelectContext(ctx, &periods, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list exam periods: %w", err)
	}
	return periods, total, nil
}

// Touch bumps updated_at after the roster or timetable changed.
func (r *ExamPeriodRepository) Touch(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `UPDATE exam_periods SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("touch exam period: %w", err)
	}
	return nil
}
