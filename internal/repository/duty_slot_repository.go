package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/watchtower-api/internal/models"
)

// DutySlotRepository manages the hall assignments of a duty schedule.
type DutySlotRepository struct {
	db *sqlx.DB
}

// NewDutySlotRepository builds repository.
func NewDutySlotRepository(db *sqlx.DB) *DutySlotRepository {
	return &DutySlotRepository{db: db}
}

func (r *DutySlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch stores slots of one schedule. Unassigned halves are written as NULL.
func (r *DutySlotRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.DutySlotRecord) error {
	if len(slots) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO duty_slots (id, duty_schedule_id, day, serial, hall, grade, subject, first_half, second_half, conflict, created_at)
VALUES (:id, :duty_schedule_id, :day, :serial, :hall, :grade, :subject, :first_half, :second_half, :conflict, :created_at)`

	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, slot); err != nil {
			return fmt.Errorf("insert duty slot: %w", err)
		}
	}
	return nil
}

// ListBySchedule returns slots ordered by day then serial.
func (r *DutySlotRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.DutySlotRecord, error) {
	const query = `SELECT id, duty_schedule_id, day, serial, hall, grade, subject, first_half, second_half, conflict, created_at
FROM duty_slots WHERE duty_schedule_id = $1 ORDER BY day ASC, serial ASC`
	var slots []models.DutySlotRecord
	if err := r.db.SelectContext(ctx, &slots, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list duty slots: %w", err)
	}
	return slots, nil
}
