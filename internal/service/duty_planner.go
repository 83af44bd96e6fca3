package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/watchtower-api/internal/models"
)

const (
	halfCooldownDays = 2
	fullCooldownDays = 3
	subjectRestDays  = 3
	computerMinGrade = 4
	computerMaxGrade = 8
)

// GapFillScope selects which idle teachers the gap-fill pass considers.
type GapFillScope string

const (
	// GapFillAllGrades lets idle teachers of every grade scheduled that day take
	// any open second half.
	GapFillAllGrades GapFillScope = "all_grades"
	// GapFillFirstGrade only considers idle teachers of the grade of the day's
	// first slot.
	GapFillFirstGrade GapFillScope = "first_grade"
)

// PlannerOptions tunes a PlanDuties run.
type PlannerOptions struct {
	GapFill GapFillScope
}

type half int

const (
	firstHalf half = iota
	secondHalf
)

type cooldown struct {
	Half int
	Full int
}

// plannerState is the per-teacher bookkeeping owned by one PlanDuties call.
type plannerState struct {
	teachers       []models.Teacher
	opts           PlannerOptions
	dutyCount      map[string]int
	cooldown       map[string]cooldown
	lastSubjectDay map[string]int
	hallToday      map[string]string
	plan           *models.DutyPlan
}

// PlanDuties assigns first- and second-half invigilators to every exam session.
// Sessions are processed day by day and, within a day, scarcest subject first, so
// identical input always produces an identical plan.
func PlanDuties(sessions []models.ExamSession, teachers []models.Teacher, opts PlannerOptions) (plan *models.DutyPlan, err error) {
	defer func() {
		if r := recover(); r != nil {
			plan = nil
			err = fmt.Errorf("plan duties: %v", r)
		}
	}()
	if opts.GapFill == "" {
		opts.GapFill = GapFillAllGrades
	}

	state := newPlannerState(teachers, opts)
	for day := 1; day <= models.MaxExamDays; day++ {
		state.planDay(day, sessions)
	}

	state.plan.DutyCounts = state.dutyCount
	state.plan.Distribution = state.distribution()
	return state.plan, nil
}

func newPlannerState(teachers []models.Teacher, opts PlannerOptions) *plannerState {
	state := &plannerState{
		teachers:       teachers,
		opts:           opts,
		dutyCount:      make(map[string]int, len(teachers)),
		cooldown:       make(map[string]cooldown, len(teachers)),
		lastSubjectDay: make(map[string]int, len(teachers)),
		plan: &models.DutyPlan{
			Days: make(map[int][]models.DutySlot, models.MaxExamDays),
		},
	}
	for _, t := range teachers {
		state.dutyCount[t.Name] = 0
		state.lastSubjectDay[t.Name] = 0
	}
	return state
}

func (s *plannerState) planDay(day int, sessions []models.ExamSession) {
	s.hallToday = make(map[string]string)
	available := s.availableTeachers(day)

	var daySessions []models.ExamSession
	for _, session := range sessions {
		if session.Day == day {
			daySessions = append(daySessions, session)
		}
	}
	sort.SliceStable(daySessions, func(i, j int) bool {
		return s.qualifiedCount(daySessions[i].Subject) < s.qualifiedCount(daySessions[j].Subject)
	})

	slots := make([]models.DutySlot, 0, len(daySessions))
	for idx, session := range daySessions {
		first := s.assign(session, available, day, firstHalf, models.TeacherRef{})
		second := s.assign(session, available, day, secondHalf, first)
		slots = append(slots, models.DutySlot{
			Serial:     idx + 1,
			Hall:       session.Hall,
			Grade:      session.Grade,
			Subject:    session.Subject,
			FirstHalf:  first,
			SecondHalf: second,
			Conflict:   models.HasConflict(first, second),
		})

		// Every qualified teacher of the grade counts as exposed, on duty or not.
		for _, t := range s.teachers {
			if t.Teaches(session.Subject) && t.Grade == session.Grade {
				s.lastSubjectDay[t.Name] = day
			}
		}
	}
	s.plan.Days[day] = slots

	s.fillGaps(day, available)
}

func (s *plannerState) availableTeachers(day int) []models.Teacher {
	var out []models.Teacher
	for _, t := range s.teachers {
		if s.cooldown[t.Name].Full < day {
			out = append(out, t)
		}
	}
	return out
}

func (s *plannerState) qualifiedCount(subject string) int {
	count := 0
	for _, t := range s.teachers {
		if t.Teaches(subject) {
			count++
		}
	}
	return count
}

// inOtherHall reports whether the teacher already holds a hall other than hall today.
func (s *plannerState) inOtherHall(name, hall string) bool {
	assigned, ok := s.hallToday[name]
	return ok && assigned != hall
}

func (s *plannerState) restedFromSubject(name string, day int) bool {
	return day-s.lastSubjectDay[name] >= subjectRestDays
}

func (s *plannerState) isComputerTeacher(t models.Teacher) bool {
	return t.Teaches(models.SubjectComputer) && t.Grade >= computerMinGrade && t.Grade <= computerMaxGrade
}

// byDutyPriority orders candidates with computer teachers last, then by fewest duties.
func (s *plannerState) byDutyPriority(list []models.Teacher) {
	sort.SliceStable(list, func(i, j int) bool {
		ci, cj := s.isComputerTeacher(list[i]), s.isComputerTeacher(list[j])
		if ci != cj {
			return cj
		}
		return s.dutyCount[list[i].Name] < s.dutyCount[list[j].Name]
	})
}

func (s *plannerState) placeSubjectTeacher(name, hall string, day int) {
	s.dutyCount[name]++
	s.cooldown[name] = cooldown{Half: day + halfCooldownDays, Full: day + fullCooldownDays}
	s.hallToday[name] = hall
}

// place records a non-priority assignment. Only teachers qualified in the exam
// subject have their cooldown reset.
func (s *plannerState) place(t models.Teacher, session models.ExamSession, day int) models.TeacherRef {
	s.dutyCount[t.Name]++
	if t.Teaches(session.Subject) {
		s.cooldown[t.Name] = cooldown{Half: day + halfCooldownDays, Full: day + fullCooldownDays}
	}
	s.hallToday[t.Name] = session.Hall
	return models.AssignedTo(t.Name)
}

func (s *plannerState) assign(session models.ExamSession, available []models.Teacher, day int, h half, previous models.TeacherRef) models.TeacherRef {
	var candidates []models.Teacher
	for _, t := range available {
		if t.Grade == session.Grade && !s.inOtherHall(t.Name, session.Hall) {
			candidates = append(candidates, t)
		}
	}

	var subjectTeacher *models.Teacher
	for i := range candidates {
		if candidates[i].Teaches(session.Subject) {
			subjectTeacher = &candidates[i]
			break
		}
	}
	if subjectTeacher != nil {
		switch {
		case h == firstHalf:
			s.placeSubjectTeacher(subjectTeacher.Name, session.Hall, day)
			return models.AssignedTo(subjectTeacher.Name)
		case previous.Valid && previous.Name == subjectTeacher.Name:
			s.dutyCount[subjectTeacher.Name]++
			return previous
		}
	}

	var free []models.Teacher
	for _, t := range candidates {
		if _, busy := s.hallToday[t.Name]; !busy {
			free = append(free, t)
		}
	}
	s.byDutyPriority(free)

	if h == firstHalf && subjectTeacher == nil {
		for _, t := range free {
			if !t.Teaches(session.Subject) {
				continue
			}
			if s.restedFromSubject(t.Name, day) {
				return s.place(t, session, day)
			}
			break
		}
	}

	if h == secondHalf && previous.Valid && s.restedFromSubject(previous.Name, day) {
		for _, t := range free {
			if t.Name == previous.Name {
				s.dutyCount[previous.Name]++
				return previous
			}
		}
	}

	for _, t := range free {
		if h == secondHalf && previous.Valid && t.Name == previous.Name {
			continue
		}
		if s.cooldown[t.Name].Half < day {
			return s.place(t, session, day)
		}
	}

	if len(free) > 0 {
		t := free[0]
		if s.restedFromSubject(t.Name, day) || !t.Teaches(session.Subject) {
			return s.place(t, session, day)
		}
	}

	return models.TeacherRef{}
}

// fillGaps hands open second halves to available teachers who sat the day out.
func (s *plannerState) fillGaps(day int, available []models.Teacher) {
	slots := s.plan.Days[day]
	if len(slots) == 0 {
		return
	}

	placed := make(map[string]bool)
	grades := make(map[int]bool)
	for _, slot := range slots {
		if slot.FirstHalf.Valid {
			placed[slot.FirstHalf.Name] = true
		}
		if slot.SecondHalf.Valid {
			placed[slot.SecondHalf.Name] = true
		}
		grades[slot.Grade] = true
	}

	firstGrade := slots[0].Grade
	var idle []models.Teacher
	for _, t := range available {
		if placed[t.Name] {
			continue
		}
		switch s.opts.GapFill {
		case GapFillFirstGrade:
			if t.Grade != firstGrade {
				continue
			}
		default:
			if !grades[t.Grade] {
				continue
			}
		}
		idle = append(idle, t)
	}
	s.byDutyPriority(idle)

	for _, t := range idle {
		for i := range slots {
			slot := &slots[i]
			if slot.SecondHalf.Valid || s.inOtherHall(t.Name, slot.Hall) {
				continue
			}
			if s.restedFromSubject(t.Name, day) || !t.Teaches(slot.Subject) {
				slot.SecondHalf = models.AssignedTo(t.Name)
				slot.Conflict = models.HasConflict(slot.FirstHalf, slot.SecondHalf)
				s.dutyCount[t.Name]++
				s.hallToday[t.Name] = slot.Hall
			}
			break
		}
	}
}

func (s *plannerState) distribution() models.DutyDistribution {
	dist := models.DutyDistribution{
		Lower: []models.TeacherDuty{},
		Upper: []models.TeacherDuty{},
	}
	for _, t := range s.teachers {
		row := models.TeacherDuty{Name: t.Name, Grade: t.Grade, Duties: s.dutyCount[t.Name]}
		if t.Grade <= models.LowerCohortMaxGrade {
			dist.Lower = append(dist.Lower, row)
		} else {
			dist.Upper = append(dist.Upper, row)
		}
	}
	return dist
}
