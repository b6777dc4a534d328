package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

// seatInsertBatch keeps a multi-row insert well under the Postgres bind parameter limit.
const seatInsertBatch = 500

// SeatAssignmentRepository manages the seats of saved plans.
type SeatAssignmentRepository struct {
	db *sqlx.DB
}

// NewSeatAssignmentRepository builds repository.
func NewSeatAssignmentRepository(db *sqlx.DB) *SeatAssignmentRepository {
	return &SeatAssignmentRepository{db: db}
}

func (r *SeatAssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch writes every seat of a plan using multi-row inserts.
func (r *SeatAssignmentRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, planID string, seats []models.SeatAssignment) error {
	if len(seats) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	for i := range seats {
		seat := &seats[i]
		if seat.ID == "" {
			seat.ID = uuid.NewString()
		}
		seat.SeatingPlanID = planID
		if seat.CreatedAt.IsZero() {
			seat.CreatedAt = now
		}
	}

	const query = `
INSERT INTO seat_assignments (id, seating_plan_id, room_id, room_name, bench_number, position, roll, student_name, subject, created_at)
VALUES (:id, :seating_plan_id, :room_id, :room_name, :bench_number, :position, :roll, :student_name, :subject, :created_at)`
	for start := 0; start < len(seats); start += seatInsertBatch {
		end := start + seatInsertBatch
		if end > len(seats) {
			end = len(seats)
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, seats[start:end]); err != nil {
			return fmt.Errorf("insert seat assignments: %w", err)
		}
	}
	return nil
}

// seatOrder sorts "seat_N" labels by N so seat_10 follows seat_9; left/right carry no digits
// and fall back to the label.
const seatOrder = `room_name ASC, bench_number ASC, NULLIF(regexp_replace(position, '\D', '', 'g'), '')::int ASC NULLS FIRST, position ASC`

// ListByPlan returns seats ordered by room, bench and seat number.
func (r *SeatAssignmentRepository) ListByPlan(ctx context.Context, planID string) ([]models.SeatAssignment, error) {
	const query = `SELECT id, seating_plan_id, room_id, room_name, bench_number, position, roll, student_name, subject, created_at
FROM seat_assignments WHERE seating_plan_id = $1 ORDER BY ` + seatOrder
	var seats []models.SeatAssignment
	if err := r.db.SelectContext(ctx, &seats, query, planID); err != nil {
		return nil, fmt.Errorf("list seat assignments: %w", err)
	}
	return seats, nil
}

// DeleteByPlan removes the seats of a plan.
func (r *SeatAssignmentRepository) DeleteByPlan(ctx context.Context, exec sqlx.ExtContext, planID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM seat_assignments WHERE seating_plan_id = $1`, planID); err != nil {
		return fmt.Errorf("delete seat assignments: %w", err)
	}
	return nil
}
