package models

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SeatingPlanStatus represents lifecycle phases for saved seating plans.
type SeatingPlanStatus string

const (
	SeatingPlanStatusDraft     SeatingPlanStatus = "DRAFT"
	SeatingPlanStatusPublished SeatingPlanStatus = "PUBLISHED"
)

// SeatingPlan is a persisted seating proposal.
type SeatingPlan struct {
	ID            string            `db:"id" json:"id"`
	Name          string            `db:"name" json:"name"`
	Status        SeatingPlanStatus `db:"status" json:"status"`
	Algorithm     string            `db:"algorithm" json:"algorithm"`
	Seed          *int64            `db:"seed" json:"seed,omitempty"`
	TotalStudents int               `db:"total_students" json:"total_students"`
	Success       bool              `db:"success" json:"success"`
	Meta          types.JSONText    `db:"meta" json:"meta"`
	CreatedBy     string            `db:"created_by" json:"created_by"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
	PublishedAt   *time.Time        `db:"published_at" json:"published_at,omitempty"`
}

// SeatAssignment is one seat of a saved plan. Student fields are denormalised so a plan stays
// readable after the roster changes.
type SeatAssignment struct {
	ID            string    `db:"id" json:"id"`
	SeatingPlanID string    `db:"seating_plan_id" json:"seating_plan_id"`
	RoomID        string    `db:"room_id" json:"room_id"`
	RoomName      string    `db:"room_name" json:"room_name"`
	BenchNumber   int       `db:"bench_number" json:"bench_number"`
	Position      string    `db:"position" json:"position"`
	Roll          string    `db:"roll" json:"roll"`
	StudentName   string    `db:"student_name" json:"student_name"`
	Subject       string    `db:"subject" json:"subject"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// SeatingPlanFilter captures list filters for saved plans.
type SeatingPlanFilter struct {
	Status   *SeatingPlanStatus
	Search   string
	Page     int
	PageSize int
}

// SeatIndex orders a position label within its bench: left=1, right=2, seat_N=N. Unknown
// labels return 0.
func SeatIndex(position string) int {
	switch strings.ToLower(position) {
	case "left":
		return 1
	case "right":
		return 2
	}
	if n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(position), "seat_")); err == nil {
		return n
	}
	return 0
}

// SortSeats orders seats by room name, bench and seat index in place.
func SortSeats(seats []SeatAssignment) {
	sort.SliceStable(seats, func(i, j int) bool {
		a, b := seats[i], seats[j]
		if a.RoomName != b.RoomName {
			return a.RoomName < b.RoomName
		}
		if a.BenchNumber != b.BenchNumber {
			return a.BenchNumber < b.BenchNumber
		}
		return SeatIndex(a.Position) < SeatIndex(b.Position)
	})
}
