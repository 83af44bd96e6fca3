package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// MaxExamDays is the length of one examination period in days.
const MaxExamDays = 14

// Exam catalogue shared by roster and timetable entry.
const (
	SubjectEnglish   = "English"
	SubjectNepali    = "Nepali"
	SubjectMath      = "Math"
	SubjectScience   = "Science"
	SubjectSamajik   = "Samajik"
	SubjectComputer  = "Computer"
	SubjectOptional1 = "Optional-1"
	// SubjectGap marks a day without an exam for a grade.
	SubjectGap = "Gap"
)

var (
	// Subjects lists every selectable timetable value in display order.
	Subjects = []string{SubjectEnglish, SubjectNepali, SubjectMath, SubjectScience, SubjectSamajik, SubjectComputer, SubjectOptional1, SubjectGap}
	// Grades lists the grades that sit exams.
	Grades = []int{4, 5, 6, 7, 8, 9, 10}
	// Sections lists the sections of every grade; each one gets its own hall.
	Sections = []string{"A", "B", "C"}
)

// LowerCohortMaxGrade is the highest grade reported in the lower duty cohort.
const LowerCohortMaxGrade = 6

// Teacher is a roster member bound to one grade and qualified in one or more subjects.
type Teacher struct {
	Name     string   `json:"name"`
	Grade    int      `json:"grade"`
	Subjects []string `json:"subjects"`
}

// Teaches reports whether the teacher is qualified in subject.
func (t Teacher) Teaches(subject string) bool {
	for _, s := range t.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// ExamSession is one sitting of a subject in a single hall on a given day.
type ExamSession struct {
	Day     int    `json:"day"`
	Subject string `json:"subject"`
	Grade   int    `json:"grade"`
	Hall    string `json:"hall"`
}

// HallName builds the hall identifier for a grade section, e.g. "7A".
func HallName(grade int, section string) string {
	return strconv.Itoa(grade) + section
}

// TeacherRef names the invigilator of one half. The zero value means unassigned.
type TeacherRef struct {
	Name  string
	Valid bool
}

// AssignedTo builds a reference to a named teacher.
func AssignedTo(name string) TeacherRef {
	return TeacherRef{Name: name, Valid: true}
}

// Assigned reports whether a teacher occupies the half.
func (r TeacherRef) Assigned() bool {
	return r.Valid
}

// String renders the reference for tables and logs.
func (r TeacherRef) String() string {
	if !r.Valid {
		return "UNASSIGNED"
	}
	return r.Name
}

// Ptr converts the reference into a nullable string.
func (r TeacherRef) Ptr() *string {
	if !r.Valid {
		return nil
	}
	name := r.Name
	return &name
}

// TeacherRefFromPtr is the inverse of Ptr.
func TeacherRefFromPtr(name *string) TeacherRef {
	if name == nil {
		return TeacherRef{}
	}
	return AssignedTo(*name)
}

// MarshalJSON encodes unassigned halves as null.
func (r TeacherRef) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Name)
}

// UnmarshalJSON accepts a string or null.
func (r *TeacherRef) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = TeacherRef{}
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("decode teacher ref: %w", err)
	}
	*r = AssignedTo(name)
	return nil
}

// Value stores unassigned halves as NULL.
func (r TeacherRef) Value() (driver.Value, error) {
	if !r.Valid {
		return nil, nil
	}
	return r.Name, nil
}

// Scan reads a nullable text column.
func (r *TeacherRef) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*r = TeacherRef{}
	case string:
		*r = AssignedTo(v)
	case []byte:
		*r = AssignedTo(string(v))
	default:
		return fmt.Errorf("unsupported type %T for TeacherRef", value)
	}
	return nil
}

// DutySlot is the invigilation assignment for one hall on one day.
type DutySlot struct {
	Serial     int        `json:"serial"`
	Hall       string     `json:"hall"`
	Grade      int        `json:"grade"`
	Subject    string     `json:"subject"`
	FirstHalf  TeacherRef `json:"first_half"`
	SecondHalf TeacherRef `json:"second_half"`
	Conflict   bool       `json:"conflict"`
}

// HasConflict reports whether both halves went to the same teacher.
func HasConflict(first, second TeacherRef) bool {
	return first.Valid && second.Valid && first.Name == second.Name
}

// TeacherDuty is one row of the duty distribution report.
type TeacherDuty struct {
	Name   string `json:"name"`
	Grade  int    `json:"grade"`
	Duties int    `json:"duties"`
}

// DutyDistribution splits duty counts into the lower (4-6) and upper (7-10) cohorts.
type DutyDistribution struct {
	Lower []TeacherDuty `json:"lower"`
	Upper []TeacherDuty `json:"upper"`
}

// DutyPlan is the output of one scheduling run.
type DutyPlan struct {
	Days         map[int][]DutySlot `json:"days"`
	DutyCounts   map[string]int     `json:"duty_counts"`
	Distribution DutyDistribution   `json:"distribution"`
}

// Slots returns every slot of the plan ordered by day then serial.
func (p *DutyPlan) Slots() []DutySlot {
	if p == nil {
		return nil
	}
	var out []DutySlot
	for day := 1; day <= MaxExamDays; day++ {
		out = append(out, p.Days[day]...)
	}
	return out
}

// DutyPlanStats summarises coverage of a plan.
type DutyPlanStats struct {
	Sessions         int `json:"sessions"`
	AssignedHalves   int `json:"assigned_halves"`
	UnassignedHalves int `json:"unassigned_halves"`
	Conflicts        int `json:"conflicts"`
}

// Stats counts assigned and unassigned halves across the plan.
func (p *DutyPlan) Stats() DutyPlanStats {
	var stats DutyPlanStats
	for _, slot := range p.Slots() {
		stats.Sessions++
		for _, half := range []TeacherRef{slot.FirstHalf, slot.SecondHalf} {
			if half.Valid {
				stats.AssignedHalves++
			} else {
				stats.UnassignedHalves++
			}
		}
		if slot.Conflict {
			stats.Conflicts++
		}
	}
	return stats
}
