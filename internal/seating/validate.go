package seating

import (
	"fmt"
	"strings"
)

// Validate reports every structural problem with the input instead of stopping at the first.
// An empty slice means the input is usable.
func Validate(students []Student, rooms []Room) []string {
	problems := make([]string, 0)
	if len(students) == 0 {
		problems = append(problems, "no students provided")
	}
	if len(rooms) == 0 {
		problems = append(problems, "no rooms provided")
	}

	for i, student := range students {
		if strings.TrimSpace(student.Roll) == "" {
			problems = append(problems, fmt.Sprintf("student #%d has no roll", i+1))
		}
	}
	if dups := duplicates(len(students), func(i int) string { return students[i].Roll }); len(dups) > 0 {
		problems = append(problems, fmt.Sprintf("duplicate roll numbers: %s", strings.Join(dups, ", ")))
	}

	for i, room := range rooms {
		label := room.Name
		if label == "" {
			label = room.ID
		}
		if room.ID == "" {
			problems = append(problems, fmt.Sprintf("room #%d has no room_id", i+1))
		}
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if room.NumBenches <= 0 {
			problems = append(problems, fmt.Sprintf("room %s has invalid num_benches %d", label, room.NumBenches))
		}
		if room.SeatsPerBench <= 0 {
			problems = append(problems, fmt.Sprintf("room %s has invalid seats_per_bench %d", label, room.SeatsPerBench))
		}
	}

	roomIDs := duplicates(len(rooms), func(i int) string { return rooms[i].ID })
	if len(roomIDs) > 0 {
		problems = append(problems, fmt.Sprintf("duplicate room ids: %s", strings.Join(roomIDs, ", ")))
	}
	return problems
}

// duplicates lists repeated non-empty keys once each, in first-repeat order.
func duplicates(n int, key func(int) string) []string {
	seen := make(map[string]bool, n)
	var out []string
	for i := 0; i < n; i++ {
		k := key(i)
		if k == "" {
			continue
		}
		reported, ok := seen[k]
		switch {
		case !ok:
			seen[k] = false
		case !reported:
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
