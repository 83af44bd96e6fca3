package models

import "time"

// ExamPeriod scopes one roster, one timetable and its duty schedules.
type ExamPeriod struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	StartsOn  *time.Time `db:"starts_on" json:"starts_on,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// RosterEntry is one teacher/grade/subject row as entered. Entries sharing a
// name and grade merge into one Teacher.
type RosterEntry struct {
	ID           string    `db:"id" json:"id"`
	ExamPeriodID string    `db:"exam_period_id" json:"exam_period_id"`
	Position     int       `db:"position" json:"position"`
	TeacherName  string    `db:"teacher_name" json:"teacher_name"`
	Grade        int       `db:"grade" json:"grade"`
	Subject      string    `db:"subject" json:"subject"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TimetableEntry assigns one subject (or Gap) to a grade on a day.
type TimetableEntry struct {
	ID           string    `db:"id" json:"id"`
	ExamPeriodID string    `db:"exam_period_id" json:"exam_period_id"`
	Day          int       `db:"day" json:"day"`
	Grade        int       `db:"grade" json:"grade"`
	Subject      string    `db:"subject" json:"subject"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
