package seating

import (
	"fmt"
	"sort"
)

type subjectGroup struct {
	subject string
	members []Student
}

// groupBySubject keys groups in first-appearance order.
func groupBySubject(students []Student) []*subjectGroup {
	index := make(map[string]*subjectGroup)
	groups := make([]*subjectGroup, 0)
	for _, st := range students {
		g, ok := index[st.Subject]
		if !ok {
			g = &subjectGroup{subject: st.Subject}
			index[st.Subject] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, st)
	}
	return groups
}

// rankGroups returns non-empty groups, largest first, ties kept in key order.
func rankGroups(groups []*subjectGroup) []*subjectGroup {
	ranked := make([]*subjectGroup, 0, len(groups))
	for _, g := range groups {
		if len(g.members) > 0 {
			ranked = append(ranked, g)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return len(ranked[i].members) > len(ranked[j].members)
	})
	return ranked
}

// positionLabel names a seat: left/right on two-seat benches, seat_N otherwise.
func positionLabel(seat, seatsPerBench int) string {
	if seatsPerBench == 2 {
		if seat == 0 {
			return "left"
		}
		return "right"
	}
	return fmt.Sprintf("seat_%d", seat+1)
}

// assignRoom packs one room bench by bench, seat by seat, never revisiting a placement.
// Each seat takes the largest remaining subject not yet on the bench; when none is left the
// largest group is used anyway and the collision is recorded.
func assignRoom(room Room, students []Student) ([]Assignment, []Conflict) {
	groups := groupBySubject(students)
	remaining := len(students)
	assignments := make([]Assignment, 0, len(students))
	var conflicts []Conflict

	for bench := 0; bench < room.NumBenches && remaining > 0; bench++ {
		onBench := make(map[string]struct{}, room.SeatsPerBench)
		for seat := 0; seat < room.SeatsPerBench && remaining > 0; seat++ {
			ranked := rankGroups(groups)
			chosen := ranked[0]
			forced := true
			for _, g := range ranked {
				if _, used := onBench[g.subject]; !used {
					chosen, forced = g, false
					break
				}
			}
			if forced {
				conflicts = append(conflicts, Conflict{
					Type:        ConflictConstraint,
					Message:     fmt.Sprintf("Room %s bench %d seats two %s students together", room.Name, bench+1, chosen.subject),
					Room:        room.Name,
					BenchNumber: bench + 1,
				})
			}

			st := chosen.members[0]
			chosen.members = chosen.members[1:]
			onBench[chosen.subject] = struct{}{}
			remaining--

			assignments = append(assignments, Assignment{
				RoomID:      room.ID,
				RoomName:    room.Name,
				BenchNumber: bench + 1,
				Position:    positionLabel(seat, room.SeatsPerBench),
				Student:     st,
			})
		}
	}

	if remaining > 0 {
		conflicts = append(conflicts, Conflict{
			Type:    ConflictOverflow,
			Message: fmt.Sprintf("Room %s ran out of benches: %d students could not be seated", room.Name, remaining),
			Room:    room.Name,
		})
	}
	return assignments, conflicts
}
