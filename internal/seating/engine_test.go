package seating

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeStudents(prefix, subject string, count int) []Student {
	out := make([]Student, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, Student{
			Roll:    fmt.Sprintf("%s-%d", prefix, i),
			Name:    fmt.Sprintf("%s student %d", subject, i),
			Subject: subject,
		})
	}
	return out
}

func mixedCohort() []Student {
	students := makeStudents("10", "BBA", 3)
	students = append(students, makeStudents("20", "BCom", 2)...)
	students = append(students, makeStudents("30", "BCA", 3)...)
	return students
}

func seatKey(a Assignment) string {
	return fmt.Sprintf("%s|%d|%s", a.RoomID, a.BenchNumber, a.Position)
}

func assertNoSharedSubjectBench(t *testing.T, assignments []Assignment) {
	t.Helper()
	benches := make(map[string]map[string]bool)
	for _, a := range assignments {
		key := fmt.Sprintf("%s|%d", a.RoomID, a.BenchNumber)
		if benches[key] == nil {
			benches[key] = make(map[string]bool)
		}
		assert.False(t, benches[key][a.Student.Subject], "bench %s repeats subject %s", key, a.Student.Subject)
		benches[key][a.Student.Subject] = true
	}
}

func TestEngineScheduleEndToEnd(t *testing.T) {
	engine := NewEngine()
	rooms := []Room{{ID: "r1", Name: "Room 1", NumBenches: 4, SeatsPerBench: 2}}

	result := engine.Schedule(mixedCohort(), rooms, Options{})

	require.True(t, result.Success)
	assert.True(t, result.Diagnostics.Feasible)
	assert.Len(t, result.Assignments, 8)
	assert.Zero(t, result.Diagnostics.Count(ConflictConstraint))
	assert.Zero(t, result.Diagnostics.Count(ConflictOverflow))
	assert.Equal(t, AlgorithmGreedy, result.Algorithm)

	require.Len(t, result.RoomSummaries, 1)
	summary := result.RoomSummaries[0]
	assert.Equal(t, 8, summary.Total)
	require.Len(t, summary.Subjects, 3)
	assert.Equal(t, "BBA", summary.Subjects[0].Subject)
	assert.Equal(t, "BCA", summary.Subjects[1].Subject)
	assert.Equal(t, "BCom", summary.Subjects[2].Subject)
	assert.Equal(t, "1 to 3", summary.Subjects[0].Ranges)
	assert.Equal(t, 2, summary.Subjects[2].Count)

	seen := make(map[string]bool)
	for _, a := range result.Assignments {
		assert.False(t, seen[seatKey(a)], "seat %s reused", seatKey(a))
		seen[seatKey(a)] = true
		assert.Contains(t, []string{"left", "right"}, a.Position)
	}
	assertNoSharedSubjectBench(t, result.Assignments)
}

func TestEngineScheduleDeterministicWithSeed(t *testing.T) {
	engine := NewEngine()
	rooms := []Room{
		{ID: "r1", Name: "Room 1", NumBenches: 3, SeatsPerBench: 2},
		{ID: "r2", Name: "Room 2", NumBenches: 3, SeatsPerBench: 2},
	}
	students := append(makeStudents("10", "BBA", 4), makeStudents("20", "BCA", 4)...)
	seed := int64(2024)

	first := engine.Schedule(students, rooms, Options{Seed: &seed})
	second := engine.Schedule(students, rooms, Options{Seed: &seed})

	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Diagnostics, second.Diagnostics)
}

func TestEngineScheduleDoesNotMutateInput(t *testing.T) {
	engine := NewEngine()
	students := mixedCohort()
	original := append([]Student(nil), students...)
	seed := int64(7)

	engine.Schedule(students, []Room{{ID: "r1", Name: "Room 1", NumBenches: 4, SeatsPerBench: 2}}, Options{Seed: &seed})

	assert.Equal(t, original, students)
}

func TestEngineScheduleCapacityShortfall(t *testing.T) {
	engine := NewEngine()
	rooms := []Room{{ID: "r1", Name: "Room 1", NumBenches: 2, SeatsPerBench: 2}}

	result := engine.Schedule(makeStudents("10", "BBA", 20), rooms, Options{})

	assert.False(t, result.Success)
	assert.False(t, result.Diagnostics.Feasible)
	assert.Empty(t, result.Assignments)
	require.NotEmpty(t, result.Diagnostics.Suggestions)
	assert.Contains(t, result.Diagnostics.Suggestions[0], "16")
}

func TestEngineScheduleSubjectDistributionInfeasible(t *testing.T) {
	engine := NewEngine()
	students := append(makeStudents("10", "BBA", 10), makeStudents("20", "BCom", 1)...)
	rooms := []Room{{ID: "r1", Name: "Room 1", NumBenches: 6, SeatsPerBench: 2}}

	result := engine.Schedule(students, rooms, Options{})

	assert.False(t, result.Success)
	assert.False(t, result.Diagnostics.Feasible)
	assert.Empty(t, result.Assignments)
	require.Equal(t, 1, result.Diagnostics.Count(ConflictInfeasible))
	assert.Contains(t, result.Diagnostics.Conflicts[0].Message, "BBA")
	assert.Contains(t, result.Diagnostics.Conflicts[0].Message, "6")
}

func TestEngineSchedulePreferredRoom(t *testing.T) {
	engine := NewEngine()
	students := []Student{
		{Roll: "10-1", Name: "A", Subject: "BBA", PreferredRoom: "Room 1"},
		{Roll: "20-1", Name: "B", Subject: "BCA", PreferredRoom: "Room 1"},
	}
	rooms := []Room{
		{ID: "r2", Name: "Room 2", NumBenches: 2, SeatsPerBench: 2},
		{ID: "r1", Name: "Room 1", NumBenches: 2, SeatsPerBench: 2},
	}

	result := engine.Schedule(students, rooms, Options{})

	require.True(t, result.Success)
	require.Len(t, result.Assignments, 2)
	for _, a := range result.Assignments {
		assert.Equal(t, "Room 1", a.RoomName)
	}
}

func TestEngineScheduleForcedCollisionIsNotSuccess(t *testing.T) {
	engine := NewEngine()
	students := []Student{
		{Roll: "10-1", Subject: "BBA", PreferredRoom: "r1"},
		{Roll: "10-2", Subject: "BBA", PreferredRoom: "r1"},
		{Roll: "20-1", Subject: "BCA"},
		{Roll: "20-2", Subject: "BCA"},
	}
	rooms := []Room{
		{ID: "r1", Name: "Room 1", NumBenches: 1, SeatsPerBench: 2},
		{ID: "r2", Name: "Room 2", NumBenches: 1, SeatsPerBench: 2},
	}

	result := engine.Schedule(students, rooms, Options{})

	assert.False(t, result.Success)
	assert.True(t, result.Diagnostics.Feasible)
	assert.Len(t, result.Assignments, 4)
	assert.Equal(t, 2, result.Diagnostics.Count(ConflictConstraint))
	assert.NotEmpty(t, result.Diagnostics.Suggestions)
}

func TestEngineScheduleValidationFailure(t *testing.T) {
	engine := NewEngine()
	students := []Student{{Roll: "1", Subject: "BBA"}, {Roll: "1", Subject: "BCA"}}
	rooms := []Room{{ID: "r1", Name: "Room 1", NumBenches: 0, SeatsPerBench: 2}}

	result := engine.Schedule(students, rooms, Options{})

	assert.False(t, result.Success)
	assert.True(t, result.Diagnostics.Feasible)
	assert.Empty(t, result.Assignments)
	assert.Equal(t, 2, result.Diagnostics.Count(ConflictValidation))
}

func TestEngineUnknownAlgorithmFallsBackToGreedy(t *testing.T) {
	engine := NewEngine()
	rooms := []Room{{ID: "r1", Name: "Room 1", NumBenches: 4, SeatsPerBench: 2}}

	result := engine.Schedule(mixedCohort(), rooms, Options{Algorithm: "simulated-annealing"})

	assert.True(t, result.Success)
	assert.Equal(t, AlgorithmGreedy, result.Algorithm)
}

type reverseStrategy struct{}

func (reverseStrategy) Name() Algorithm { return "reverse" }

func (reverseStrategy) Place(students []Student, rooms []Room) ([]Assignment, []Conflict) {
	reversed := make([]Student, len(students))
	for i, st := range students {
		reversed[len(students)-1-i] = st
	}
	return Greedy{}.Place(reversed, rooms)
}

func TestEngineWithStrategy(t *testing.T) {
	engine := NewEngine(WithStrategy(reverseStrategy{}))
	assert.Equal(t, []Algorithm{AlgorithmGreedy, "reverse"}, engine.Algorithms())

	rooms := []Room{{ID: "r1", Name: "Room 1", NumBenches: 4, SeatsPerBench: 2}}
	result := engine.Schedule(mixedCohort(), rooms, Options{Algorithm: " Reverse "})

	assert.Equal(t, Algorithm("reverse"), result.Algorithm)
	assert.Len(t, result.Assignments, 8)
}

func TestEngineScheduleThreeSeatBenches(t *testing.T) {
	engine := NewEngine()
	students := append(makeStudents("10", "BBA", 2), makeStudents("20", "BCA", 2)...)
	students = append(students, makeStudents("30", "BCom", 2)...)
	rooms := []Room{{ID: "r1", Name: "Room 1", NumBenches: 2, SeatsPerBench: 3}}

	result := engine.Schedule(students, rooms, Options{})

	require.True(t, result.Success)
	positions := make(map[string]bool)
	for _, a := range result.Assignments {
		positions[a.Position] = true
	}
	assert.Equal(t, map[string]bool{"seat_1": true, "seat_2": true, "seat_3": true}, positions)
	assertNoSharedSubjectBench(t, result.Assignments)
}
