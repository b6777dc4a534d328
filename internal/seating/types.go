package seating

// Student is one examinee handed to the engine for a single scheduling call.
type Student struct {
	Roll          string `json:"roll"`
	Name          string `json:"name"`
	Subject       string `json:"subject"`
	PreferredRoom string `json:"preferred_room,omitempty"`
}

// Room is an exam hall made of identical benches.
type Room struct {
	ID            string `json:"room_id"`
	Name          string `json:"room_name"`
	NumBenches    int    `json:"num_benches"`
	SeatsPerBench int    `json:"seats_per_bench"`
}

// Capacity returns the number of seats in the room. Malformed rooms have no capacity.
func (r Room) Capacity() int {
	if r.NumBenches <= 0 || r.SeatsPerBench <= 0 {
		return 0
	}
	return r.NumBenches * r.SeatsPerBench
}

// Assignment places one student on a labelled seat of a bench.
type Assignment struct {
	RoomID      string  `json:"room_id"`
	RoomName    string  `json:"room_name"`
	BenchNumber int     `json:"bench_number"`
	Position    string  `json:"position"`
	Student     Student `json:"student"`
}

// ConflictType classifies a diagnostic entry.
type ConflictType string

const (
	ConflictValidation ConflictType = "validation"
	ConflictInfeasible ConflictType = "infeasible"
	ConflictConstraint ConflictType = "constraint"
	ConflictOverflow   ConflictType = "overflow"
)

// Conflict describes a single problem found while building a plan.
type Conflict struct {
	Type        ConflictType `json:"type"`
	Message     string       `json:"message"`
	Room        string       `json:"room,omitempty"`
	BenchNumber int          `json:"bench_number,omitempty"`
}

// Diagnostics collects everything the engine found wrong with a run.
type Diagnostics struct {
	Feasible    bool       `json:"feasible"`
	Conflicts   []Conflict `json:"conflicts"`
	Suggestions []string   `json:"suggestions"`
}

// Count returns how many conflicts of the given type were recorded.
func (d Diagnostics) Count(kind ConflictType) int {
	total := 0
	for _, c := range d.Conflicts {
		if c.Type == kind {
			total++
		}
	}
	return total
}

// SubjectSummary is the roll-range report of one subject inside a room.
type SubjectSummary struct {
	Subject string `json:"subject"`
	Count   int    `json:"count"`
	Ranges  string `json:"ranges"`
}

// RoomSummary aggregates a room's assignments per subject.
type RoomSummary struct {
	RoomID   string           `json:"room_id"`
	RoomName string           `json:"room_name"`
	Total    int              `json:"total"`
	Subjects []SubjectSummary `json:"subjects"`
}

// Constraints carries caller hints. The greedy strategy always tries to keep subjects apart.
type Constraints struct {
	NoSameSubjectBench bool `json:"no_same_subject_bench"`
}

// Options tunes a scheduling call.
type Options struct {
	Algorithm   string      `json:"algorithm,omitempty"`
	Constraints Constraints `json:"constraints"`
	Seed        *int64      `json:"seed,omitempty"`
}

// Result is the full outcome of a scheduling call.
type Result struct {
	Success       bool          `json:"success"`
	Algorithm     Algorithm     `json:"algorithm"`
	Assignments   []Assignment  `json:"assignments"`
	Diagnostics   Diagnostics   `json:"diagnostics"`
	RoomSummaries []RoomSummary `json:"room_summaries"`
}
