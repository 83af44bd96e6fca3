// Command schedule_replay runs the duty planner over a roster and timetable
// captured as JSON and prints the resulting plan. With --expected it compares
// the plan against a stored one and exits non-zero on any difference.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	flag "github.com/spf13/pflag"

	"github.com/noah-isme/watchtower-api/internal/dto"
	"github.com/noah-isme/watchtower-api/internal/models"
	"github.com/noah-isme/watchtower-api/internal/service"
)

type fixture struct {
	Roster    dto.SubmitRosterRequest    `json:"roster"`
	Timetable dto.SubmitTimetableRequest `json:"timetable"`
}

type replayOutput struct {
	GapFillScope string                    `json:"gapFillScope"`
	Stats        models.DutyPlanStats      `json:"stats"`
	Days         map[int][]models.DutySlot `json:"days"`
	DutyCounts   map[string]int            `json:"dutyCounts"`
	Distribution models.DutyDistribution   `json:"distribution"`
}

var errPlanMismatch = errors.New("plan differs from expected")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "schedule_replay: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("schedule_replay", flag.ContinueOnError)
	input := fs.StringP("input", "i", "", "Fixture with roster and timetable entries")
	expected := fs.StringP("expected", "e", "", "Optional plan to compare against")
	scope := fs.StringP("scope", "s", string(service.GapFillAllGrades), "Gap-fill scope: all_grades or first_grade")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return errors.New("--input is required")
	}

	fx, err := loadFixture(*input)
	if err != nil {
		return err
	}
	out, err := replay(fx, service.GapFillScope(*scope))
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if _, err := fmt.Fprintln(stdout, string(encoded)); err != nil {
		return err
	}

	if *expected == "" {
		return nil
	}
	want, err := os.ReadFile(*expected)
	if err != nil {
		return fmt.Errorf("read expected plan: %w", err)
	}
	same, err := jsonEqual(encoded, want)
	if err != nil {
		return err
	}
	if !same {
		return errPlanMismatch
	}
	return nil
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var fx fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &fx, nil
}

func replay(fx *fixture, scope service.GapFillScope) (*replayOutput, error) {
	if scope != service.GapFillAllGrades && scope != service.GapFillFirstGrade {
		return nil, fmt.Errorf("unknown gap-fill scope %q", scope)
	}
	validate := validator.New()

	roster := make([]models.RosterEntry, 0, len(fx.Roster.Entries))
	for _, entry := range fx.Roster.Entries {
		entry.TeacherName = strings.TrimSpace(entry.TeacherName)
		if entry.TeacherName == "" {
			continue
		}
		if err := validate.Struct(entry); err != nil {
			return nil, fmt.Errorf("roster entry %q: %w", entry.TeacherName, err)
		}
		roster = append(roster, models.RosterEntry{TeacherName: entry.TeacherName, Grade: entry.Grade, Subject: entry.Subject})
	}
	teachers, err := service.MergeRoster(roster)
	if err != nil {
		return nil, err
	}

	if err := validate.Struct(fx.Timetable); err != nil {
		return nil, fmt.Errorf("timetable: %w", err)
	}
	timetable := make([]models.TimetableEntry, 0, len(fx.Timetable.Entries))
	for _, entry := range fx.Timetable.Entries {
		timetable = append(timetable, models.TimetableEntry{Day: entry.Day, Grade: entry.Grade, Subject: entry.Subject})
	}

	plan, err := service.PlanDuties(service.ExpandSessions(timetable), teachers, service.PlannerOptions{GapFill: scope})
	if err != nil {
		return nil, err
	}
	return &replayOutput{
		GapFillScope: string(scope),
		Stats:        plan.Stats(),
		Days:         plan.Days,
		DutyCounts:   plan.DutyCounts,
		Distribution: plan.Distribution,
	}, nil
}

func jsonEqual(a, b []byte) (bool, error) {
	var left, right interface{}
	if err := json.Unmarshal(a, &left); err != nil {
		return false, fmt.Errorf("decode plan: %w", err)
	}
	if err := json.Unmarshal(b, &right); err != nil {
		return false, fmt.Errorf("decode expected plan: %w", err)
	}
	normalizedLeft, _ := json.Marshal(left)
	normalizedRight, _ := json.Marshal(right)
	return bytes.Equal(normalizedLeft, normalizedRight), nil
}
