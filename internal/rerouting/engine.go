// Package rerouting keeps published routes valid as cancellations, new
// orders and traffic delays arrive. Repairs are incremental: only the
// remaining portion of a route is rebuilt, completed stops stay untouched.
package rerouting

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/matrix"
	"fieldops-routing-service/internal/ports"
	"fieldops-routing-service/internal/solver"
	"fieldops-routing-service/internal/spatial"
)

const (
	repairTimeout = 3 * time.Second
	// maxConcurrentRepairs bounds solver calls issued by one engine.
	maxConcurrentRepairs = 4
)

type Engine struct {
	runner    *solver.Runner
	matrices  *matrix.Computer
	index     *spatial.Index
	plans     ports.PlanRepository
	snapshots ports.SnapshotStore

	tracks *trackSet
	sem    chan struct{}

	// now is swappable for deterministic tests.
	now func() time.Time
}

func NewEngine(
	runner *solver.Runner,
	matrices *matrix.Computer,
	index *spatial.Index,
	plans ports.PlanRepository,
	snapshots ports.SnapshotStore,
) *Engine {
	return &Engine{
		runner:    runner,
		matrices:  matrices,
		index:     index,
		plans:     plans,
		snapshots: snapshots,
		tracks:    newTrackSet(),
		sem:       make(chan struct{}, maxConcurrentRepairs),
		now:       time.Now,
	}
}

// Track registers an active route for supervision. The vehicle and its
// pending stops enter the spatial index.
func (e *Engine) Track(vehicle domain.VehicleConfig, jobs []domain.Job, plan *domain.SolutionResult) {
	t := newTrack(vehicle, jobs, plan)
	e.tracks.put(vehicle.ID, t)

	e.index.Upsert(vehicle.ID, spatial.KindVehicle, vehicle.Start.Point)
	for _, j := range jobs {
		e.index.Upsert(j.ID, spatial.KindStop, j.Location.Point)
	}
}

// Release stops supervising a route and clears its index entries.
func (e *Engine) Release(entityID string) {
	t, ok := e.tracks.get(entityID)
	if !ok {
		return
	}
	t.mu.Lock()
	for id := range t.jobs {
		e.index.Remove(id)
	}
	t.mu.Unlock()
	e.index.Remove(entityID)
	e.tracks.remove(entityID)
}

// CurrentPlan returns the live plan of a tracked entity.
func (e *Engine) CurrentPlan(entityID string) (*domain.SolutionResult, bool) {
	t, ok := e.tracks.get(entityID)
	if !ok {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.plan, true
}

func (e *Engine) State(entityID string) (RouteState, bool) {
	t, ok := e.tracks.get(entityID)
	if !ok {
		return "", false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, true
}

// HandleEvent is the pipeline entry point for order, traffic and visit
// events. Events for the same route are serialized on the track mutex so two
// concurrent events never race to produce conflicting repairs.
func (e *Engine) HandleEvent(ctx context.Context, ev domain.Event) error {
	t, ok := e.tracks.get(ev.EntityID)
	if !ok {
		return fmt.Errorf("handle %s event: no active route for entity %s", ev.Type, ev.EntityID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateFailed {
		return fmt.Errorf("handle %s event: route %s is failed, waiting for manual dispatch", ev.Type, ev.EntityID)
	}

	switch ev.Type {
	case domain.EventVisit:
		return e.handleVisit(t, ev)
	case domain.EventOrder:
		return e.handleOrder(ctx, t, ev)
	case domain.EventTraffic:
		return e.handleTraffic(ctx, t, ev)
	default:
		return fmt.Errorf("handle event: type %s not owned by rerouting", ev.Type)
	}
}

func (e *Engine) handleVisit(t *track, ev domain.Event) error {
	jobID := ev.Visit.JobID
	if _, ok := t.jobs[jobID]; !ok {
		return fmt.Errorf("visit event: job %s not on route %s", jobID, t.vehicle.ID)
	}
	if !ev.Visit.Completed {
		log.Printf("visit not completed entity=%s job=%s", t.vehicle.ID, jobID)
	}
	t.completed[jobID] = struct{}{}
	delete(t.delays, jobID)
	e.index.Remove(jobID)
	t.state = StateActive
	return nil
}

func (e *Engine) handleOrder(ctx context.Context, t *track, ev domain.Event) error {
	switch ev.Order.Action {
	case domain.OrderCancelled:
		return e.handleCancel(ctx, t, ev.Order.JobID)
	case domain.OrderAdded:
		return e.handleAdd(ctx, t, *ev.Order.Job)
	default:
		return fmt.Errorf("order event: unknown action %q", ev.Order.Action)
	}
}

// handleCancel drops the stop and reschedules the remaining stops in their
// existing order. Only when the preserved order turns infeasible does a full
// repair run.
func (e *Engine) handleCancel(ctx context.Context, t *track, jobID string) error {
	if _, ok := t.jobs[jobID]; !ok {
		// Not on this route: nothing to do, prior plan stands.
		t.state = StateFeasible
		return nil
	}
	if _, done := t.completed[jobID]; done {
		return fmt.Errorf("cancel job %s: already visited on route %s", jobID, t.vehicle.ID)
	}

	delete(t.jobs, jobID)
	delete(t.delays, jobID)
	e.index.Remove(jobID)

	plan, err := e.rebuildTail(ctx, t, e.orderedRemaining(t))
	if err != nil {
		log.Printf("rerouting order preservation failed entity=%s err=%v", t.vehicle.ID, err)
		return e.repair(ctx, t)
	}
	return e.publish(ctx, t, plan)
}

// handleAdd injects a new job; the current plan cannot contain it, so this
// always goes through repair.
func (e *Engine) handleAdd(ctx context.Context, t *track, job domain.Job) error {
	if _, ok := t.jobs[job.ID]; ok {
		return fmt.Errorf("add job %s: already on route %s", job.ID, t.vehicle.ID)
	}
	t.jobs[job.ID] = job
	e.index.Upsert(job.ID, spatial.KindStop, job.Location.Point)
	t.state = StateInfeasible
	return e.repair(ctx, t)
}

func (e *Engine) handleTraffic(ctx context.Context, t *track, ev domain.Event) error {
	delay := time.Duration(ev.Traffic.DelaySeconds) * time.Second
	affected := 0
	for _, st := range t.remaining() {
		job, ok := t.jobs[st.JobID]
		if !ok {
			continue
		}
		hit := false
		if ev.Traffic.JobID != "" {
			hit = job.ID == ev.Traffic.JobID
		} else {
			hit = ev.Traffic.Center.DistanceMeters(job.Location.Point) <= ev.Traffic.RadiusMeters
		}
		if hit {
			t.delays[job.ID] += delay
			affected++
		}
	}
	if affected == 0 {
		// Event does not touch this route: the prior plan is reused as is.
		t.state = StateFeasible
		return nil
	}

	if err := t.validateRemaining(); err == nil {
		t.state = StateFeasible
		return nil
	} else {
		log.Printf("route infeasible entity=%s reason=%v", t.vehicle.ID, err)
	}
	t.state = StateInfeasible
	return e.repair(ctx, t)
}

// orderedRemaining returns the remaining jobs in current plan order, with
// injected jobs not yet in any plan appended at the end.
func (e *Engine) orderedRemaining(t *track) []domain.Job {
	var out []domain.Job
	planned := make(map[string]struct{})
	for _, st := range t.remaining() {
		if job, ok := t.jobs[st.JobID]; ok {
			out = append(out, job)
			planned[job.ID] = struct{}{}
		}
	}
	var injected []domain.Job
	for id, job := range t.jobs {
		if _, ok := planned[id]; ok {
			continue
		}
		if _, done := t.completed[id]; done {
			continue
		}
		injected = append(injected, job)
	}
	sort.Slice(injected, func(i, j int) bool { return injected[i].ID < injected[j].ID })
	return append(out, injected...)
}

// rebuildTail recomputes the schedule of the given jobs in the given order
// from the route's resume point. It fails when any stop would miss its
// window, which escalates to a full repair.
func (e *Engine) rebuildTail(ctx context.Context, t *track, jobs []domain.Job) (*domain.SolutionResult, error) {
	resume, at := t.resumePoint(e.now())
	if len(jobs) == 0 {
		return e.splice(t, domain.Route{VehicleID: t.vehicle.ID}), nil
	}

	points := make([]domain.LatLng, 0, len(jobs)+1)
	points = append(points, resume.Point)
	for _, j := range jobs {
		points = append(points, j.Location.Point)
	}
	m, err := e.matrices.Matrix(ctx, points, ports.ProfileRoadNetwork)
	if err != nil {
		return nil, fmt.Errorf("rebuild tail: %w", err)
	}

	route := domain.Route{VehicleID: t.vehicle.ID}
	now := at
	var load domain.Demand
	prev := 0
	for i, job := range jobs {
		travel := m.Duration(prev, i+1)
		arrive := now.Add(time.Duration(travel) * time.Second)
		if w := job.Location.Window; w != nil {
			if arrive.Before(w.Start) {
				arrive = w.Start
			}
			if arrive.After(w.End) {
				return nil, fmt.Errorf("rebuild tail: stop %s misses window", job.ID)
			}
		}
		load = load.Add(job.Demand)
		depart := arrive.Add(job.Location.ServiceDuration)
		route.Steps = append(route.Steps, domain.RouteStep{
			JobID:     job.ID,
			ArriveAt:  arrive,
			DepartAt:  depart,
			LoadAfter: load,
		})
		route.DistanceMeters += m.Distance(prev, i+1)
		route.DurationSeconds += travel + int(job.Location.ServiceDuration.Seconds())
		now = depart
		prev = i + 1
	}
	if !load.Fits(t.vehicle.Capacity) {
		return nil, fmt.Errorf("rebuild tail: load exceeds capacity")
	}
	return e.splice(t, route), nil
}

// repair rebuilds the remaining portion of the route with the solver. When
// the vehicle alone cannot serve every remaining stop, the nearest idle
// tracked vehicle joins the reduced problem as a reassignment candidate.
func (e *Engine) repair(ctx context.Context, t *track) error {
	t.state = StateRepairing
	jobs := e.orderedRemaining(t)

	result, err := e.solveReduced(ctx, t, jobs, nil)
	if err != nil || len(result.Unassigned) > 0 {
		if alt := e.nearestIdleVehicle(t); alt != nil {
			log.Printf(
				"rerouting reassignment entity=%s alternate=%s unplaced=%d",
				t.vehicle.ID, alt.vehicle.ID, unplacedCount(result),
			)
			altResult, altErr := e.solveReduced(ctx, t, jobs, alt)
			if altErr == nil && len(altResult.Unassigned) == 0 {
				return e.applyRepair(ctx, t, alt, altResult)
			}
		}
	}
	if err != nil {
		t.state = StateFailed
		return fmt.Errorf("repair route %s: %w", t.vehicle.ID, err)
	}
	if len(result.Unassigned) > 0 {
		t.state = StateFailed
		return fmt.Errorf(
			"repair route %s: %d stops have no feasible placement, manual dispatch required",
			t.vehicle.ID, len(result.Unassigned),
		)
	}
	return e.applyRepair(ctx, t, nil, result)
}

func unplacedCount(r *domain.SolutionResult) int {
	if r == nil {
		return -1
	}
	return len(r.Unassigned)
}

// solveReduced runs the solver over the remaining stops from the route's
// resume point, optionally with one alternate vehicle.
func (e *Engine) solveReduced(
	ctx context.Context,
	t *track,
	jobs []domain.Job,
	alt *track,
) (*domain.SolutionResult, error) {
	resume, at := t.resumePoint(e.now())

	self := t.vehicle
	self.Start = resume
	if at.After(self.Shift.Start) {
		self.Shift.Start = at
	}
	vehicles := []domain.VehicleConfig{self}
	if alt != nil {
		av := alt.vehicle
		av.Start = domain.Location{Point: alt.position}
		if at.After(av.Shift.Start) {
			av.Shift.Start = at
		}
		vehicles = append(vehicles, av)
	}

	points := make([]domain.LatLng, 0, len(vehicles)+len(jobs))
	for _, v := range vehicles {
		points = append(points, v.Start.Point)
	}
	for _, j := range jobs {
		points = append(points, j.Location.Point)
	}
	m, err := e.matrices.Matrix(ctx, points, ports.ProfileRoadNetwork)
	if err != nil {
		return nil, fmt.Errorf("reduced matrix: %w", err)
	}

	problem := &domain.RoutingProblem{
		Jobs:     jobs,
		Vehicles: vehicles,
		Matrix:   m,
		DepartAt: at,
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("reduced solve: %w", ctx.Err())
	}
	defer func() { <-e.sem }()

	return e.runner.Solve(ctx, problem, repairTimeout)
}

// applyRepair splices the repaired tail after the completed prefix and
// publishes the new plan. When an alternate vehicle absorbed stops, its plan
// is published too.
func (e *Engine) applyRepair(ctx context.Context, t *track, alt *track, result *domain.SolutionResult) error {
	tail, _ := result.RouteFor(t.vehicle.ID)
	plan := e.splice(t, tail)
	if err := e.publish(ctx, t, plan); err != nil {
		return err
	}

	if alt == nil {
		return nil
	}
	altRoute, ok := result.RouteFor(alt.vehicle.ID)
	if !ok || len(altRoute.Steps) == 0 {
		return nil
	}
	// The caller holds t.mu. TryLock avoids a lock-ordering deadlock when the
	// alternate is concurrently repairing and looking back at this route.
	if !alt.mu.TryLock() {
		return fmt.Errorf("reassign to %s: route busy, retry required", alt.vehicle.ID)
	}
	defer alt.mu.Unlock()
	moved := 0
	for _, st := range altRoute.Steps {
		if job, owned := t.jobs[st.JobID]; owned {
			alt.jobs[st.JobID] = job
			delete(t.jobs, st.JobID)
			moved++
		}
	}
	log.Printf("rerouting moved stops from=%s to=%s count=%d", t.vehicle.ID, alt.vehicle.ID, moved)
	altPlan := e.splice(alt, altRoute)
	return e.publish(ctx, alt, altPlan)
}

// splice builds the successor SolutionResult: completed prefix first, then
// the repaired tail. Distance and duration aggregates cover the tail, the
// portion still to be driven.
func (e *Engine) splice(t *track, tail domain.Route) *domain.SolutionResult {
	route := domain.Route{
		VehicleID:       t.vehicle.ID,
		Steps:           append(t.completedPrefix(), tail.Steps...),
		DistanceMeters:  tail.DistanceMeters,
		DurationSeconds: tail.DurationSeconds,
	}
	return &domain.SolutionResult{
		ID:                   uuid.NewString(),
		Routes:               []domain.Route{route},
		TotalDistanceMeters:  route.DistanceMeters,
		TotalDurationSeconds: route.DurationSeconds,
		ComputedAt:           e.now(),
	}
}

// publish swaps the track's current plan and pushes it to the plan store and
// snapshot cache. The in-memory swap happens first so a storage outage never
// leaves the engine driving a stale schedule.
func (e *Engine) publish(ctx context.Context, t *track, plan *domain.SolutionResult) error {
	t.plan = plan
	t.delays = make(map[string]time.Duration)
	t.state = StateActive

	if e.plans != nil {
		if err := e.plans.PublishPlan(ctx, t.vehicle.ID, plan); err != nil {
			return fmt.Errorf("publish plan for %s: %w", t.vehicle.ID, err)
		}
	}
	if e.snapshots != nil {
		if err := e.snapshots.SaveSnapshot(ctx, t.vehicle.ID, plan); err != nil {
			log.Printf("plan snapshot write failed entity=%s err=%v", t.vehicle.ID, err)
		}
	}
	log.Printf(
		"plan published entity=%s plan=%s stops=%d",
		t.vehicle.ID, plan.ID, len(plan.Routes[0].Steps),
	)
	return nil
}

// nearestIdleVehicle finds the closest tracked vehicle with no remaining
// stops. Candidates come from the spatial index around the route's resume
// point.
func (e *Engine) nearestIdleVehicle(t *track) *track {
	resume, _ := t.resumePoint(e.now())
	for _, m := range e.index.Nearest(resume.Point, 5, spatial.KindVehicle) {
		if m.Entity.ID == t.vehicle.ID {
			continue
		}
		cand, ok := e.tracks.get(m.Entity.ID)
		if !ok {
			continue
		}
		if !cand.mu.TryLock() {
			continue
		}
		idle := len(cand.remaining()) == 0 && cand.state != StateFailed
		cand.mu.Unlock()
		if idle {
			return cand
		}
	}
	return nil
}

// trackSet is the registry of supervised routes.
type trackSet struct {
	mu     sync.RWMutex
	routes map[string]*track
}

func newTrackSet() *trackSet {
	return &trackSet{routes: make(map[string]*track)}
}

func (s *trackSet) put(id string, t *track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[id] = t
}

func (s *trackSet) get(id string) (*track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.routes[id]
	return t, ok
}

func (s *trackSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.routes, id)
}
