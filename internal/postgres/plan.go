package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/idunn/internal/domain"
)

// PlanStore implements domain.PlanStore using PostgreSQL.
// The plan catalog is seeded by migrations and read-only at runtime.
type PlanStore struct {
	pool *pgxpool.Pool
}

var _ domain.PlanStore = (*PlanStore)(nil)

// NewPlanStore creates a new PlanStore instance.
func NewPlanStore(pool *pgxpool.Pool) *PlanStore {
	return &PlanStore{pool: pool}
}

const planColumns = `id, code, name, price_cents, COALESCE(stripe_price_id, ''), limits, created_at`

func scanPlan(row interface{ Scan(dest ...any) error }) (*domain.Plan, error) {
	var (
		plan       domain.Plan
		limitsJSON []byte
	)
	err := row.Scan(
		&plan.ID,
		&plan.Code,
		&plan.Name,
		&plan.PriceCents,
		&plan.StripePriceID,
		&limitsJSON,
		&plan.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(limitsJSON) > 0 {
		if err := json.Unmarshal(limitsJSON, &plan.Limits); err != nil {
			return nil, fmt.Errorf("failed to parse plan limits: %w", err)
		}
	}
	return &plan, nil
}

// GetByID retrieves a plan by ID.
func (s *PlanStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`

	plan, err := scanPlan(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to query plan: %w", err)
	}
	return plan, nil
}

// GetByCode retrieves a plan by its code ("free", "pro", "business").
func (s *PlanStore) GetByCode(ctx context.Context, code string) (*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE code = $1`

	plan, err := scanPlan(s.pool.QueryRow(ctx, query, code))
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to query plan by code: %w", err)
	}
	return plan, nil
}

// List returns the plan catalog ordered by price.
func (s *PlanStore) List(ctx context.Context) ([]domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans ORDER BY price_cents`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}
