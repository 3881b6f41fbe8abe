package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/ports"
)

// Postgres-backed implementation of the PlanRepository port. Plans are
// stored as JSONB, one current plan per entity; publishing replaces the
// previous plan atomically via upsert.
type PgPlanRepository struct{ DB *sql.DB }

func NewPgPlanRepository(db *sql.DB) *PgPlanRepository {
	return &PgPlanRepository{DB: db}
}

func (r *PgPlanRepository) PublishPlan(ctx context.Context, entityID string, plan *domain.SolutionResult) error {
	if r.DB == nil {
		return errors.New("plan repository: DB is nil")
	}
	if plan == nil {
		return fmt.Errorf("publish plan for %q: plan is nil", entityID)
	}

	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("publish plan for %q: encode plan: %w", entityID, err)
	}

	query := `
	INSERT INTO plans (entity_id, plan, published_at)
	VALUES ($1, $2, now())
	ON CONFLICT (entity_id)
	DO UPDATE SET plan = EXCLUDED.plan, published_at = EXCLUDED.published_at;
	`
	if _, err := r.DB.ExecContext(ctx, query, entityID, payload); err != nil {
		return fmt.Errorf("publish plan for %q: upsert: %w", entityID, err)
	}

	return nil
}

func (r *PgPlanRepository) CurrentPlan(ctx context.Context, entityID string) (*domain.SolutionResult, error) {
	if r.DB == nil {
		return nil, errors.New("plan repository: DB is nil")
	}

	query := `
	SELECT plan
	FROM plans
	WHERE entity_id = $1;
	`

	var payload []byte
	err := r.DB.QueryRowContext(ctx, query, entityID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("current plan for %q: %w", entityID, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("current plan for %q: query plans table: %w", entityID, err)
	}

	var plan domain.SolutionResult
	if err := json.Unmarshal(payload, &plan); err != nil {
		return nil, fmt.Errorf("current plan for %q: decode plan: %w", entityID, err)
	}

	return &plan, nil
}
