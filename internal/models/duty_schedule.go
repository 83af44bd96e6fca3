package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// DutyScheduleStatus represents lifecycle phases for saved duty schedules.
type DutyScheduleStatus string

const (
	DutyScheduleStatusDraft     DutyScheduleStatus = "DRAFT"
	DutyScheduleStatusPublished DutyScheduleStatus = "PUBLISHED"
)

// DutySchedule is a saved, versioned plan for an exam period.
type DutySchedule struct {
	ID           string             `db:"id" json:"id"`
	ExamPeriodID string             `db:"exam_period_id" json:"exam_period_id"`
	Version      int                `db:"version" json:"version"`
	Status       DutyScheduleStatus `db:"status" json:"status"`
	Meta         types.JSONText     `db:"meta" json:"meta"`
	CreatedBy    string             `db:"created_by" json:"created_by"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
	PublishedAt  *time.Time         `db:"published_at" json:"published_at,omitempty"`
}

// DutyScheduleMeta is stored in DutySchedule.Meta.
type DutyScheduleMeta struct {
	GapFillScope string           `json:"gap_fill_scope"`
	Stats        DutyPlanStats    `json:"stats"`
	DutyCounts   map[string]int   `json:"duty_counts"`
	Distribution DutyDistribution `json:"distribution"`
}

// DutySlotRecord is the persisted form of a DutySlot.
type DutySlotRecord struct {
	ID             string     `db:"id" json:"id"`
	DutyScheduleID string     `db:"duty_schedule_id" json:"duty_schedule_id"`
	Day            int        `db:"day" json:"day"`
	Serial         int        `db:"serial" json:"serial"`
	Hall           string     `db:"hall" json:"hall"`
	Grade          int        `db:"grade" json:"grade"`
	Subject        string     `db:"subject" json:"subject"`
	FirstHalf      TeacherRef `db:"first_half" json:"first_half"`
	SecondHalf     TeacherRef `db:"second_half" json:"second_half"`
	Conflict       bool       `db:"conflict" json:"conflict"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Slot drops the persistence fields.
func (r DutySlotRecord) Slot() DutySlot {
	return DutySlot{
		Serial:     r.Serial,
		Hall:       r.Hall,
		Grade:      r.Grade,
		Subject:    r.Subject,
		FirstHalf:  r.FirstHalf,
		SecondHalf: r.SecondHalf,
		Conflict:   r.Conflict,
	}
}

// DutyScheduleDetail is a saved schedule with its slots regrouped by day.
type DutyScheduleDetail struct {
	Schedule DutySchedule       `json:"schedule"`
	Meta     DutyScheduleMeta   `json:"meta"`
	Days     map[int][]DutySlot `json:"days"`
}

// DutyScheduleSummary lists the saved versions of an exam period. ActiveID is
// the newest published version.
type DutyScheduleSummary struct {
	ExamPeriodID string                `json:"exam_period_id"`
	ActiveID     *string               `json:"active_id,omitempty"`
	Versions     []DutyScheduleVersion `json:"versions"`
}

// DutyScheduleVersion is lightweight metadata for list views.
type DutyScheduleVersion struct {
	ID          string             `json:"id"`
	Version     int                `json:"version"`
	Status      DutyScheduleStatus `json:"status"`
	Stats       DutyPlanStats      `json:"stats"`
	CreatedAt   time.Time          `json:"created_at"`
	PublishedAt *time.Time         `json:"published_at,omitempty"`
}
