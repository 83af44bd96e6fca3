package dto

import "time"

// CreateExamPeriodRequest opens a new exam period.
type CreateExamPeriodRequest struct {
	Name     string     `json:"name" validate:"required,max=120"`
	StartsOn *time.Time `json:"startsOn"`
}

// RosterEntryRequest is one teacher/grade/subject cell of the roster form.
// Blank names are skipped, the way empty inputs are ignored by the form.
type RosterEntryRequest struct {
	TeacherName string `json:"teacherName" validate:"max=120"`
	Grade       int    `json:"grade" validate:"oneof=4 5 6 7 8 9 10"`
	Subject     string `json:"subject" validate:"oneof=English Nepali Math Science Samajik Computer Optional-1"`
}

// SubmitRosterRequest replaces the roster of an exam period.
type SubmitRosterRequest struct {
	Entries []RosterEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

// TimetableEntryRequest sets the subject of one grade on one exam day.
type TimetableEntryRequest struct {
	Day     int    `json:"day" validate:"min=1,max=14"`
	Grade   int    `json:"grade" validate:"oneof=4 5 6 7 8 9 10"`
	Subject string `json:"subject" validate:"oneof=English Nepali Math Science Samajik Computer Optional-1 Gap"`
}

// SubmitTimetableRequest replaces the timetable of an exam period.
type SubmitTimetableRequest struct {
	Entries []TimetableEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

// RosterTeacher is a merged roster member.
type RosterTeacher struct {
	Name     string   `json:"name"`
	Grade    int      `json:"grade"`
	Subjects []string `json:"subjects"`
}

// RosterResponse returns the stored roster merged per teacher.
type RosterResponse struct {
	ExamPeriodID string          `json:"examPeriodId"`
	Teachers     []RosterTeacher `json:"teachers"`
	Entries      int             `json:"entries"`
}

// TimetableDay lists the subject entered for every grade on one day, keyed by
// grade. Grades without an entry are omitted.
type TimetableDay struct {
	Day      int            `json:"day"`
	Subjects map[int]string `json:"subjects"`
}

// TimetableResponse returns the stored timetable grouped by day.
type TimetableResponse struct {
	ExamPeriodID string         `json:"examPeriodId"`
	Days         []TimetableDay `json:"days"`
	Sessions     int            `json:"sessions"`
}
