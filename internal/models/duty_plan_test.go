package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeacherRefJSON(t *testing.T) {
	slot := DutySlot{Serial: 1, Hall: "7A", Grade: 7, Subject: SubjectMath, FirstHalf: AssignedTo("UNASSIGNED")}

	data, err := json.Marshal(slot)
	require.NoError(t, err)
	assert.JSONEq(t, `{"serial":1,"hall":"7A","grade":7,"subject":"Math","first_half":"UNASSIGNED","second_half":null,"conflict":false}`, string(data))

	var decoded DutySlot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.FirstHalf.Assigned(), "a teacher literally named UNASSIGNED stays assigned")
	assert.False(t, decoded.SecondHalf.Assigned())
}

func TestTeacherRefSQL(t *testing.T) {
	value, err := TeacherRef{}.Value()
	require.NoError(t, err)
	assert.Nil(t, value)

	var ref TeacherRef
	require.NoError(t, ref.Scan([]byte("Indra")))
	assert.Equal(t, AssignedTo("Indra"), ref)
	require.NoError(t, ref.Scan(nil))
	assert.False(t, ref.Assigned())
	assert.Error(t, ref.Scan(42))
}

func TestDutyPlanStats(t *testing.T) {
	plan := &DutyPlan{Days: map[int][]DutySlot{
		1: {{Hall: "7A", FirstHalf: AssignedTo("Indra"), SecondHalf: AssignedTo("Indra"), Conflict: true}},
		3: {{Hall: "4A", FirstHalf: AssignedTo("Asha")}, {Hall: "4B"}},
	}}

	assert.Equal(t, DutyPlanStats{Sessions: 3, AssignedHalves: 3, UnassignedHalves: 3, Conflicts: 1}, plan.Stats())
	assert.Equal(t, []string{"7A", "4A", "4B"}, []string{plan.Slots()[0].Hall, plan.Slots()[1].Hall, plan.Slots()[2].Hall})
}

func TestHasConflictIgnoresUnassigned(t *testing.T) {
	assert.False(t, HasConflict(TeacherRef{}, TeacherRef{}))
	assert.False(t, HasConflict(AssignedTo("A"), AssignedTo("B")))
	assert.True(t, HasConflict(AssignedTo("A"), AssignedTo("A")))
}

func TestExportJobParamsIncludes(t *testing.T) {
	assert.True(t, ExportJobParams{}.Includes(9))
	assert.True(t, ExportJobParams{Days: []int{1, 2}}.Includes(2))
	assert.False(t, ExportJobParams{Days: []int{1, 2}}.Includes(3))
}
