// Package solver provides a uniform "solve this routing problem" contract
// with interchangeable strategies and a feature-based policy for choosing
// among them.
package solver

import (
	"context"
	"sync"

	"fieldops-routing-service/internal/domain"
)

// Type is the closed set of solving strategies.
type Type string

const (
	TypeGreedy            Type = "greedy"
	TypeGenetic           Type = "genetic"
	TypeHeuristicService  Type = "heuristic_service"
	TypeConstraintService Type = "constraint_service"
)

// Solver is the uniform strategy contract. Implementations honor ctx
// cancellation: a run abandoned by its caller must release its resources
// promptly.
type Solver interface {
	Type() Type
	Solve(ctx context.Context, p *domain.RoutingProblem) (*domain.SolutionResult, error)
}

// Registry resolves a strategy tag to its implementation. External services
// are registered only when configured; the selector's pick degrades to the
// greedy fallback when its strategy is absent.
type Registry struct {
	mu      sync.RWMutex
	solvers map[Type]Solver
}

func NewRegistry() *Registry {
	return &Registry{solvers: make(map[Type]Solver)}
}

func (r *Registry) Register(s Solver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solvers[s.Type()] = s
}

func (r *Registry) Get(t Type) (Solver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.solvers[t]
	return s, ok
}
