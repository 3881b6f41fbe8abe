package rerouting

import (
	"fmt"
	"sync"
	"time"

	"fieldops-routing-service/internal/domain"
)

// RouteState is the lifecycle of one active route under the engine's watch.
//
// Active -> Feasible (event absorbed, plan unchanged)
// Active -> Infeasible -> Repairing -> Active (new plan published)
// Repairing -> Failed (no feasible repair, manual dispatch required)
type RouteState string

const (
	StateActive     RouteState = "active"
	StateFeasible   RouteState = "feasible"
	StateInfeasible RouteState = "infeasible"
	StateRepairing  RouteState = "repairing"
	StateFailed     RouteState = "failed"
)

// track is the engine's mutable view of one vehicle's active route. All
// access goes through mu: events touching the same route are serialized,
// events on different routes proceed independently.
type track struct {
	mu sync.Mutex

	vehicle domain.VehicleConfig
	jobs    map[string]domain.Job
	plan    *domain.SolutionResult
	state   RouteState

	completed map[string]struct{}
	// delays accumulates applied traffic lag per leg, keyed by the job id
	// the leg arrives at.
	delays map[string]time.Duration

	position   domain.LatLng
	speedKmh   float64
	reportedAt time.Time
}

func newTrack(vehicle domain.VehicleConfig, jobs []domain.Job, plan *domain.SolutionResult) *track {
	t := &track{
		vehicle:   vehicle,
		jobs:      make(map[string]domain.Job, len(jobs)),
		plan:      plan,
		state:     StateActive,
		completed: make(map[string]struct{}),
		delays:    make(map[string]time.Duration),
		position:  vehicle.Start.Point,
	}
	for _, j := range jobs {
		t.jobs[j.ID] = j
	}
	return t
}

// remaining returns the not-yet-visited steps of the current plan, in order.
func (t *track) remaining() []domain.RouteStep {
	route, ok := t.plan.RouteFor(t.vehicle.ID)
	if !ok {
		return nil
	}
	var out []domain.RouteStep
	for _, st := range route.Steps {
		if _, done := t.completed[st.JobID]; done {
			continue
		}
		out = append(out, st)
	}
	return out
}

// completedPrefix returns the already-visited steps of the current plan.
// A repair never alters these.
func (t *track) completedPrefix() []domain.RouteStep {
	route, ok := t.plan.RouteFor(t.vehicle.ID)
	if !ok {
		return nil
	}
	var out []domain.RouteStep
	for _, st := range route.Steps {
		if _, done := t.completed[st.JobID]; done {
			out = append(out, st)
		}
	}
	return out
}

// validateRemaining replays the remaining schedule with the applied delays
// and checks windows, capacity and skills. Planned waiting slack absorbs lag
// before it propagates to later stops.
func (t *track) validateRemaining() error {
	var lag time.Duration
	var load domain.Demand

	for _, st := range t.remaining() {
		job, ok := t.jobs[st.JobID]
		if !ok {
			continue
		}
		if !t.vehicle.HasSkill(job.Skill) {
			return fmt.Errorf("stop %s: vehicle lacks skill %q", job.ID, job.Skill)
		}

		lag += t.delays[st.JobID]
		arrive := st.ArriveAt.Add(lag)
		if w := job.Location.Window; w != nil {
			if arrive.After(w.End) {
				return fmt.Errorf("stop %s: projected arrival %s past window end %s",
					job.ID, arrive.Format(time.RFC3339), w.End.Format(time.RFC3339))
			}
		}
		slack := st.DepartAt.Sub(st.ArriveAt) - job.Location.ServiceDuration
		if slack > 0 {
			lag -= slack
			if lag < 0 {
				lag = 0
			}
		}
		load = load.Add(job.Demand)
	}

	if !load.Fits(t.vehicle.Capacity) {
		return fmt.Errorf("remaining load exceeds capacity of vehicle %s", t.vehicle.ID)
	}
	if t.vehicle.Shift.End.IsZero() {
		return nil
	}
	if rem := t.remaining(); len(rem) > 0 {
		last := rem[len(rem)-1]
		if last.DepartAt.Add(lag).After(t.vehicle.Shift.End) {
			return fmt.Errorf("remaining schedule overruns shift end of vehicle %s", t.vehicle.ID)
		}
	}
	return nil
}

// resumePoint is where and when a repair picks the route up: the last
// completed stop, or the vehicle start when nothing is done yet.
func (t *track) resumePoint(now time.Time) (domain.Location, time.Time) {
	prefix := t.completedPrefix()
	if len(prefix) == 0 {
		start := t.vehicle.Shift.Start
		if now.After(start) {
			start = now
		}
		return t.vehicle.Start, start
	}
	last := prefix[len(prefix)-1]
	job, ok := t.jobs[last.JobID]
	at := last.DepartAt
	if now.After(at) {
		at = now
	}
	if !ok {
		return domain.Location{Point: t.position}, at
	}
	return job.Location, at
}
