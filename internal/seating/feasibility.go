package seating

import "fmt"

func totalCapacity(rooms []Room) int {
	total := 0
	for _, room := range rooms {
		total += room.Capacity()
	}
	return total
}

// checkCapacity fails when there are more students than seats across all rooms.
func checkCapacity(students []Student, rooms []Room, agg *aggregator) bool {
	capacity := totalCapacity(rooms)
	if len(students) <= capacity {
		return true
	}
	deficit := len(students) - capacity
	agg.markInfeasible()
	agg.suggest(fmt.Sprintf("Add at least %d more seats: %d students but only %d seats available", deficit, len(students), capacity))
	return false
}

// checkSubjectDistribution fails when one subject is so large that it cannot be kept off
// shared benches. The ceil(n/2) bound assumes two-seat benches everywhere.
func checkSubjectDistribution(students []Student, agg *aggregator) bool {
	n := len(students)
	if n == 0 {
		return true
	}
	subject, size := largestSubject(students)
	maxAllowed := (n + 1) / 2
	if size <= maxAllowed {
		return true
	}
	agg.markInfeasible()
	agg.add(Conflict{
		Type:    ConflictInfeasible,
		Message: fmt.Sprintf("Subject %s has %d students, more than the maximum of %d that can avoid sharing a bench", subject, size, maxAllowed),
	})
	agg.suggest(fmt.Sprintf("Schedule %s in a separate session or add students from other subjects", subject))
	return false
}

// largestSubject returns the biggest subject group; ties go to the subject seen first.
func largestSubject(students []Student) (string, int) {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, st := range students {
		if _, ok := counts[st.Subject]; !ok {
			order = append(order, st.Subject)
		}
		counts[st.Subject]++
	}
	var (
		best     string
		bestSize int
	)
	for _, subject := range order {
		if counts[subject] > bestSize {
			best, bestSize = subject, counts[subject]
		}
	}
	return best, bestSize
}
