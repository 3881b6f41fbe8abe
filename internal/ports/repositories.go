package ports

import (
	"context"
	"errors"

	"fieldops-routing-service/internal/domain"
)

// ErrNotFound reports a lookup for an entity or plan the store does not
// hold. Implementations wrap it so callers can test with errors.Is.
var ErrNotFound = errors.New("not found")

// Port: read access to business entities owned by the persistence
// collaborator. This service never mutates agents, clients or vehicles.
type EntityRepository interface {
	GetAgent(ctx context.Context, agentID string) (*domain.Agent, error)
	ListClientsForAgent(ctx context.Context, agentID string) ([]domain.Client, error)
	ListVehicles(ctx context.Context) ([]domain.VehicleConfig, error)
}

// Port: publish a SolutionResult as the current plan of an entity and read
// it back. Publishing replaces the previous plan atomically.
type PlanRepository interface {
	PublishPlan(ctx context.Context, entityID string, plan *domain.SolutionResult) error
	CurrentPlan(ctx context.Context, entityID string) (*domain.SolutionResult, error)
}

// Port: hot snapshot of the current plan for downstream broadcast. Kept
// separate from PlanRepository so the durable store and the broadcast cache
// can be wired independently.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, entityID string, plan *domain.SolutionResult) error
	Snapshot(ctx context.Context, entityID string) (*domain.SolutionResult, error)
}
