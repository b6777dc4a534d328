package seating

import "strings"

// Algorithm tags a placement strategy.
type Algorithm string

// AlgorithmGreedy is the default strategy and the fallback for unknown tags.
const AlgorithmGreedy Algorithm = "greedy"

// Strategy places feasible, validated students into rooms.
type Strategy interface {
	Name() Algorithm
	Place(students []Student, rooms []Room) ([]Assignment, []Conflict)
}

// Greedy distributes students to rooms, then packs each room without backtracking.
type Greedy struct{}

var _ Strategy = Greedy{}

// NewGreedy returns the greedy strategy.
func NewGreedy() Greedy {
	return Greedy{}
}

// Name implements Strategy.
func (Greedy) Name() Algorithm {
	return AlgorithmGreedy
}

// Place implements Strategy.
func (Greedy) Place(students []Student, rooms []Room) ([]Assignment, []Conflict) {
	buckets := distribute(students, rooms)
	assignments := make([]Assignment, 0, len(students))
	var conflicts []Conflict
	for i, room := range rooms {
		placed, found := assignRoom(room, buckets[i])
		assignments = append(assignments, placed...)
		conflicts = append(conflicts, found...)
	}
	return assignments, conflicts
}

func normalizeAlgorithm(tag string) Algorithm {
	return Algorithm(strings.ToLower(strings.TrimSpace(tag)))
}
