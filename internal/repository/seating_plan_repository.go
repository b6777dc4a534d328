package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

const seatingPlanColumns = "id, name, status, algorithm, seed, total_students, success, meta, created_by, created_at, updated_at, published_at"

// SeatingPlanRepository persists saved seating plans.
type SeatingPlanRepository struct {
	db *sqlx.DB
}

// NewSeatingPlanRepository constructs repository.
func NewSeatingPlanRepository(db *sqlx.DB) *SeatingPlanRepository {
	return &SeatingPlanRepository{db: db}
}

func (r *SeatingPlanRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a plan as a draft.
func (r *SeatingPlanRepository) Create(ctx context.Context, exec sqlx.ExtContext, plan *models.SeatingPlan) error {
	if plan == nil {
		return fmt.Errorf("seating plan payload is nil")
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.Status == "" {
		plan.Status = models.SeatingPlanStatusDraft
	}
	if len(plan.Meta) == 0 {
		plan.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	const query = `
INSERT INTO seating_plans (id, name, status, algorithm, seed, total_students, success, meta, created_by, created_at, updated_at)
VALUES (:id, :name, :status, :algorithm, :seed, :total_students, :success, :meta, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, plan); err != nil {
		return fmt.Errorf("insert seating plan: %w", err)
	}
	return nil
}

// List returns plans newest first.
func (r *SeatingPlanRepository) List(ctx context.Context, filter models.SeatingPlanFilter) ([]models.SeatingPlan, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	where := strings.Join(conditions, " AND ")
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM seating_plans WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d", seatingPlanColumns, where, limit, offset)
	var plans []models.SeatingPlan
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list seating plans: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM seating_plans WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count seating plans: %w", err)
	}
	return plans, total, nil
}

// FindByID loads a plan by its identifier.
func (r *SeatingPlanRepository) FindByID(ctx context.Context, id string) (*models.SeatingPlan, error) {
	var plan models.SeatingPlan
	if err := r.db.GetContext(ctx, &plan, "SELECT "+seatingPlanColumns+" FROM seating_plans WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Publish moves a draft to PUBLISHED. sql.ErrNoRows means the plan is missing or not a draft.
func (r *SeatingPlanRepository) Publish(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE seating_plans SET status = $1, published_at = $2, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, models.SeatingPlanStatusPublished, at, id, models.SeatingPlanStatusDraft)
	if err != nil {
		return fmt.Errorf("publish seating plan: %w", err)
	}
	return expectAffected(result, "publish seating plan")
}

// DeleteDraft removes a draft plan. sql.ErrNoRows means the plan is missing or not a draft.
func (r *SeatingPlanRepository) DeleteDraft(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM seating_plans WHERE id = $1 AND status = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, id, models.SeatingPlanStatusDraft)
	if err != nil {
		return fmt.Errorf("delete seating plan: %w", err)
	}
	return expectAffected(result, "delete seating plan")
}

func expectAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
