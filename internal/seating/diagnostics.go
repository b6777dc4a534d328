package seating

import "fmt"

// aggregator merges diagnostics from every stage in the order the stages ran.
type aggregator struct {
	diag      Diagnostics
	suggested map[string]struct{}
}

func newAggregator() *aggregator {
	return &aggregator{
		diag: Diagnostics{
			Feasible:    true,
			Conflicts:   make([]Conflict, 0),
			Suggestions: make([]string, 0),
		},
		suggested: make(map[string]struct{}),
	}
}

// markInfeasible is reserved for the pre-placement checks.
func (a *aggregator) markInfeasible() {
	a.diag.Feasible = false
}

func (a *aggregator) add(conflicts ...Conflict) {
	a.diag.Conflicts = append(a.diag.Conflicts, conflicts...)
}

func (a *aggregator) suggest(text string) {
	if _, dup := a.suggested[text]; dup {
		return
	}
	a.suggested[text] = struct{}{}
	a.diag.Suggestions = append(a.diag.Suggestions, text)
}

func (a *aggregator) validationFailed(problems []string) {
	for _, p := range problems {
		a.add(Conflict{Type: ConflictValidation, Message: p})
	}
}

// placementDone adds remediation hints for soft failures found while packing seats.
func (a *aggregator) placementDone() {
	if n := a.diag.Count(ConflictConstraint); n > 0 {
		a.suggest(fmt.Sprintf("%d same-subject bench pairings were forced; try another seed or add rooms to spread subjects", n))
	}
	for _, c := range a.diag.Conflicts {
		if c.Type == ConflictOverflow {
			a.suggest(fmt.Sprintf("Add benches to room %s or move students to another room", c.Room))
		}
	}
}

// result finalises the run. Success needs a feasible plan with zero conflicts.
func (a *aggregator) result(algorithm Algorithm, assignments []Assignment, summaries []RoomSummary) Result {
	if assignments == nil {
		assignments = make([]Assignment, 0)
	}
	if summaries == nil {
		summaries = make([]RoomSummary, 0)
	}
	return Result{
		Success:       a.diag.Feasible && len(a.diag.Conflicts) == 0,
		Algorithm:     algorithm,
		Assignments:   assignments,
		Diagnostics:   a.diag,
		RoomSummaries: summaries,
	}
}
