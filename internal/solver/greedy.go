package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fieldops-routing-service/internal/domain"
)

// Greedy is the in-process nearest-feasible-insertion fallback. It is fast,
// deterministic and near-optimal at small scale, and it is the strategy every
// other strategy degrades to: it must always produce an answer.
type Greedy struct{}

func NewGreedy() Greedy { return Greedy{} }

func (Greedy) Type() Type { return TypeGreedy }

func (g Greedy) Solve(ctx context.Context, p *domain.RoutingProblem) (*domain.SolutionResult, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("greedy solve: %w", err)
	}

	unassigned := p.UnservableJobs()
	excluded := make(map[string]struct{}, len(unassigned))
	for _, u := range unassigned {
		excluded[u.JobID] = struct{}{}
	}

	remaining := make(map[int]struct{})
	for j, job := range p.Jobs {
		if _, skip := excluded[job.ID]; !skip {
			remaining[j] = struct{}{}
		}
	}

	var routes []domain.Route
	totalMeters, totalSeconds := 0, 0
	cost := 0.0

	for v := range p.Vehicles {
		if len(remaining) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cur := newCursor(p, v)
		route := domain.Route{VehicleID: p.Vehicles[v].ID}

		for {
			best := -1
			var bestNext cursor
			var bestStep domain.RouteStep
			bestTravel := 0

			// Select next stop by highest priority, then minimum travel
			// duration (greedy step). Tie-breaker on job ID keeps ordering
			// deterministic when durations are equal.
			for j := range remaining {
				next, step, _, _, ok := cur.tryAppend(j)
				if !ok {
					continue
				}
				travel := cur.travelTo(j)
				if best == -1 ||
					p.Jobs[j].Priority > p.Jobs[best].Priority ||
					(p.Jobs[j].Priority == p.Jobs[best].Priority && (travel < bestTravel ||
						(travel == bestTravel && p.Jobs[j].ID < p.Jobs[best].ID))) {
					best = j
					bestNext = next
					bestStep = step
					bestTravel = travel
				}
			}

			if best == -1 {
				break
			}

			cur = bestNext
			route.Steps = append(route.Steps, bestStep)
			delete(remaining, best)
		}

		if len(route.Steps) == 0 {
			continue
		}
		route.DistanceMeters = cur.meters
		route.DurationSeconds = cur.seconds
		totalMeters += cur.meters
		totalSeconds += cur.seconds
		cost += routeCost(p.Vehicles[v], route)
		routes = append(routes, route)
	}

	for j := range remaining {
		unassigned = append(unassigned, domain.UnassignedJob{
			JobID:  p.Jobs[j].ID,
			Reason: attributeReason(p, j),
		})
	}

	return &domain.SolutionResult{
		ID:                   uuid.NewString(),
		Routes:               routes,
		Unassigned:           unassigned,
		TotalDistanceMeters:  totalMeters,
		TotalDurationSeconds: totalSeconds,
		Cost:                 cost,
		ComputedAt:           time.Now(),
	}, nil
}

// attributeReason explains why a leftover job found no place, checked against
// every vehicle as if its route were empty: a job that would not fit even an
// idle vehicle is constrained by capacity or windows, anything else ran into
// route limits during construction.
func attributeReason(p *domain.RoutingProblem, j int) domain.UnassignedReason {
	sawWindowConflict := false
	for v := range p.Vehicles {
		_, _, reason, _, ok := newCursor(p, v).tryAppend(j)
		if ok {
			return domain.ReasonRouteLimit
		}
		if reason == domain.ReasonWindowConflict {
			sawWindowConflict = true
		}
	}
	if sawWindowConflict {
		return domain.ReasonWindowConflict
	}
	return domain.ReasonCapacityExceeded
}
