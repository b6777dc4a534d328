package seating

import (
	"sort"

	"github.com/noah-isme/exam-seating-api/pkg/rollrange"
)

// Summarize builds one report per room with per-subject counts and compacted roll ranges.
// Rooms keep their input order; subjects are sorted by name.
func Summarize(rooms []Room, assignments []Assignment) []RoomSummary {
	byRoom := make(map[string]map[string][]string, len(rooms))
	for _, a := range assignments {
		subjects, ok := byRoom[a.RoomID]
		if !ok {
			subjects = make(map[string][]string)
			byRoom[a.RoomID] = subjects
		}
		subjects[a.Student.Subject] = append(subjects[a.Student.Subject], a.Student.Roll)
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		subjects := byRoom[room.ID]
		summary := RoomSummary{
			RoomID:   room.ID,
			RoomName: room.Name,
			Subjects: make([]SubjectSummary, 0, len(subjects)),
		}
		for subject, rolls := range subjects {
			summary.Total += len(rolls)
			summary.Subjects = append(summary.Subjects, SubjectSummary{
				Subject: subject,
				Count:   len(rolls),
				Ranges:  rollrange.Format(rolls),
			})
		}
		sort.Slice(summary.Subjects, func(i, j int) bool {
			return summary.Subjects[i].Subject < summary.Subjects[j].Subject
		})
		summaries = append(summaries, summary)
	}
	return summaries
}
