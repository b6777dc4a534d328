package dto

import (
	"time"

	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/internal/seating"
)

// SeatingStudentInput is an inline examinee supplied with a generate request.
type SeatingStudentInput struct {
	Roll          string `json:"roll" validate:"required"`
	Name          string `json:"name"`
	Subject       string `json:"subject" validate:"required"`
	PreferredRoom string `json:"preferred_room,omitempty"`
}

// SeatingRoomInput is an inline room supplied with a generate request.
type SeatingRoomInput struct {
	RoomID        string `json:"room_id" validate:"required"`
	RoomName      string `json:"room_name"`
	NumBenches    int    `json:"num_benches"`
	SeatsPerBench int    `json:"seats_per_bench"`
}

// SeatingConstraints mirrors the engine constraint switches.
type SeatingConstraints struct {
	NoSameSubjectBench *bool `json:"noSameSubjectBench,omitempty"`
}

// GenerateSeatingRequest asks the engine for a seating proposal. Inline students or rooms take
// precedence over the stored roster.
type GenerateSeatingRequest struct {
	RoomIDs     []string              `json:"roomIds"`
	Subjects    []string              `json:"subjects"`
	Students    []SeatingStudentInput `json:"students" validate:"omitempty,dive"`
	Rooms       []SeatingRoomInput    `json:"rooms" validate:"omitempty,dive"`
	Algorithm   string                `json:"algorithm"`
	Seed        *int64                `json:"seed,omitempty"`
	Constraints SeatingConstraints    `json:"constraints"`
}

// GenerateSeatingResponse returns the computed proposal. Success=false still answers 200: the
// diagnostics describe why.
type GenerateSeatingResponse struct {
	ProposalID    string                `json:"proposalId"`
	Success       bool                  `json:"success"`
	Algorithm     string                `json:"algorithm"`
	Assignments   []seating.Assignment  `json:"assignments"`
	Diagnostics   seating.Diagnostics   `json:"diagnostics"`
	RoomSummaries []seating.RoomSummary `json:"roomSummaries"`
	Seed          *int64                `json:"seed,omitempty"`
	GeneratedAt   time.Time             `json:"generatedAt"`
	ExpiresAt     time.Time             `json:"expiresAt"`
}

// SaveSeatingRequest persists a cached proposal as a draft plan.
type SaveSeatingRequest struct {
	ProposalID     string `json:"proposalId" validate:"required"`
	Name           string `json:"name" validate:"required,max=120"`
	AllowConflicts bool   `json:"allowConflicts"`
}

// SeatingPlanQuery filters the saved plan list.
type SeatingPlanQuery struct {
	Status   string `form:"status" json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED"`
	Search   string `form:"search" json:"search"`
	Page     int    `form:"page" json:"page"`
	PageSize int    `form:"pageSize" json:"pageSize"`
}

// SeatingPlanMeta is stored as JSON alongside a saved plan.
type SeatingPlanMeta struct {
	ProposalID    string                `json:"proposalId"`
	Diagnostics   seating.Diagnostics   `json:"diagnostics"`
	RoomSummaries []seating.RoomSummary `json:"roomSummaries"`
	Rooms         []seating.Room        `json:"rooms"`
	GeneratedAt   time.Time             `json:"generatedAt"`
}

// SeatingPlanDetail is a saved plan with its seats and freshly computed summaries.
type SeatingPlanDetail struct {
	Plan          models.SeatingPlan      `json:"plan"`
	Assignments   []models.SeatAssignment `json:"assignments"`
	RoomSummaries []seating.RoomSummary   `json:"roomSummaries"`
	Diagnostics   *seating.Diagnostics    `json:"diagnostics,omitempty"`
}

// SeatingPlanSavedEvent is published once a plan is committed.
type SeatingPlanSavedEvent struct {
	PlanID        string `json:"planId"`
	Name          string `json:"name"`
	Algorithm     string `json:"algorithm"`
	TotalStudents int    `json:"totalStudents"`
	Rooms         int    `json:"rooms"`
	Success       bool   `json:"success"`
	SavedBy       string `json:"savedBy"`
}

// SeatingPlanStatusEvent is published on publish and delete.
type SeatingPlanStatusEvent struct {
	PlanID string `json:"planId"`
	Status string `json:"status"`
	By     string `json:"by"`
}
