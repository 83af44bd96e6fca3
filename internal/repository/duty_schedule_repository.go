package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/watchtower-api/internal/models"
)

const dutyScheduleColumns = `id, exam_period_id, version, status, meta, created_by, created_at, updated_at, published_at`

// DutyScheduleRepository persists versioned duty schedules.
type DutyScheduleRepository struct {
	db *sqlx.DB
}

// NewDutyScheduleRepository constructs repository.
func NewDutyScheduleRepository(db *sqlx.DB) *DutyScheduleRepository {
	return &DutyScheduleRepository{db: db}
}

func (r *DutyScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a schedule assigning the next version for the exam period.
func (r *DutyScheduleRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.DutySchedule) error {
	if schedule == nil {
		return fmt.Errorf("duty schedule payload is nil")
	}
	if schedule.ExamPeriodID == "" {
		return fmt.Errorf("exam_period_id is required")
	}
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Status == "" {
		schedule.Status = models.DutyScheduleStatusDraft
	}
	if len(schedule.Meta) == 0 {
		schedule.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM duty_schedules WHERE exam_period_id = $1`
	if err := sqlx.GetContext(ctx, target, &schedule.Version, nextVersionQuery, schedule.ExamPeriodID); err != nil {
		return fmt.Errorf("compute next duty schedule version: %w", err)
	}

	const insertQuery = `
INSERT INTO duty_schedules (id, exam_period_id, version, status, meta, created_by, created_at, updated_at, published_at)
VALUES (:id, :exam_period_id, :version, :status, :meta, :created_by, :created_at, :updated_at, :published_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, schedule); err != nil {
		return fmt.Errorf("insert duty schedule: %w", err)
	}
	return nil
}

// ListByPeriod returns all versions of an exam period, newest first.
func (r *DutyScheduleRepository) ListByPeriod(ctx context.Context, periodID string) ([]models.DutySchedule, error) {
	query := `SELECT ` + dutyScheduleColumns + ` FROM duty_schedules WHERE exam_period_id = $1 ORDER BY version DESC`
	var schedules []models.DutySchedule
	if err := r.db.SelectContext(ctx, &schedules, query, periodID); err != nil {
		return nil, fmt.Errorf("list duty schedules: %w", err)
	}
	return schedules, nil
}

// FindByID loads a schedule by its identifier. sql.ErrNoRows is returned unwrapped.
func (r *DutyScheduleRepository) FindByID(ctx context.Context, id string) (*models.DutySchedule, error) {
	query := `SELECT ` + dutyScheduleColumns + ` FROM duty_schedules WHERE id = $1`
	var schedule models.DutySchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// Delete removes a stored schedule version; its slots cascade.
func (r *DutyScheduleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM duty_schedules WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete duty schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("duty schedule rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkPublished flips a schedule to PUBLISHED.
func (r *DutyScheduleRepository) MarkPublished(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	const query = `UPDATE duty_schedules SET status = $1, published_at = $2, updated_at = $2 WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, models.DutyScheduleStatusPublished, at, id)
	if err != nil {
		return fmt.Errorf("publish duty schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("duty schedule status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
