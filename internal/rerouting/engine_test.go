package rerouting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops-routing-service/internal/adapters/cache"
	"fieldops-routing-service/internal/adapters/roadnet"
	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/matrix"
	"fieldops-routing-service/internal/ports"
	"fieldops-routing-service/internal/solver"
	"fieldops-routing-service/internal/spatial"
)

var depart = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

func at(latOff, lonOff float64) domain.LatLng {
	return domain.LatLng{Lat: 45 + latOff, Lon: 7 + lonOff}
}

func testVehicle(id string, start domain.LatLng, skills ...string) domain.VehicleConfig {
	return domain.VehicleConfig{
		ID:       id,
		Capacity: domain.Demand{WeightKg: 1000, VolumeM3: 10, Items: 100},
		Start:    domain.Location{Point: start},
		Shift:    domain.TimeWindow{Start: depart, End: depart.Add(10 * time.Hour)},
		Skills:   skills,
	}
}

func testJob(id string, p domain.LatLng, w *domain.TimeWindow) domain.Job {
	return domain.Job{
		ID:       id,
		Location: domain.Location{Point: p, Window: w, ServiceDuration: 5 * time.Minute},
		Demand:   domain.Demand{WeightKg: 10, VolumeM3: 0.1, Items: 1},
	}
}

type memPlanRepo struct {
	mu        sync.Mutex
	plans     map[string]*domain.SolutionResult
	publishes int
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{plans: make(map[string]*domain.SolutionResult)}
}

func (r *memPlanRepo) PublishPlan(_ context.Context, entityID string, plan *domain.SolutionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[entityID] = plan
	r.publishes++
	return nil
}

func (r *memPlanRepo) CurrentPlan(_ context.Context, entityID string) (*domain.SolutionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.plans[entityID], nil
}

func (r *memPlanRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.publishes
}

func newTestEngine(t *testing.T) (*Engine, *matrix.Computer, *memPlanRepo) {
	t.Helper()
	comp := matrix.NewComputer(&roadnet.MockSource{}, cache.NewMemoryMatrixCache())
	registry := solver.NewRegistry()
	registry.Register(solver.NewGreedy())
	repo := newMemPlanRepo()
	eng := NewEngine(solver.NewRunner(registry), comp, spatial.NewIndex(), repo, nil)
	eng.now = func() time.Time { return depart }
	return eng, comp, repo
}

func buildPlan(
	t *testing.T,
	comp *matrix.Computer,
	v domain.VehicleConfig,
	jobs []domain.Job,
) *domain.SolutionResult {
	t.Helper()
	points := []domain.LatLng{v.Start.Point}
	for _, j := range jobs {
		points = append(points, j.Location.Point)
	}
	m, err := comp.Matrix(context.Background(), points, ports.ProfileRoadNetwork)
	require.NoError(t, err)

	res, err := solver.NewGreedy().Solve(context.Background(), &domain.RoutingProblem{
		Jobs:     jobs,
		Vehicles: []domain.VehicleConfig{v},
		Matrix:   m,
		DepartAt: depart,
	})
	require.NoError(t, err)
	require.Empty(t, res.Unassigned)
	return res
}

func stepIDs(r domain.Route) []string {
	out := make([]string, 0, len(r.Steps))
	for _, st := range r.Steps {
		out = append(out, st.JobID)
	}
	return out
}

func lineJobs() []domain.Job {
	return []domain.Job{
		testJob("job-a", at(0.01, 0), nil),
		testJob("job-b", at(0.02, 0), nil),
		testJob("job-c", at(0.03, 0), nil),
	}
}

func TestCancelMiddleStopPreservesOrder(t *testing.T) {
	eng, comp, repo := newTestEngine(t)
	v := testVehicle("v-1", at(0, 0))
	jobs := lineJobs()
	plan := buildPlan(t, comp, v, jobs)
	require.Equal(t, []string{"job-a", "job-b", "job-c"}, stepIDs(plan.Routes[0]))
	eng.Track(v, jobs, plan)

	err := eng.HandleEvent(context.Background(), domain.Event{
		Type:       domain.EventOrder,
		OccurredAt: depart,
		EntityID:   "v-1",
		Order:      &domain.OrderPayload{Action: domain.OrderCancelled, JobID: "job-b"},
	})
	require.NoError(t, err)

	got, ok := eng.CurrentPlan("v-1")
	require.True(t, ok)
	assert.NotEqual(t, plan.ID, got.ID)
	assert.Equal(t, []string{"job-a", "job-c"}, stepIDs(got.Routes[0]))
	assert.Equal(t, 1, repo.count())

	state, _ := eng.State("v-1")
	assert.Equal(t, StateActive, state)
}

func TestCancelKeepsCompletedPrefix(t *testing.T) {
	eng, comp, _ := newTestEngine(t)
	v := testVehicle("v-1", at(0, 0))
	jobs := lineJobs()
	plan := buildPlan(t, comp, v, jobs)
	eng.Track(v, jobs, plan)

	require.NoError(t, eng.HandleEvent(context.Background(), domain.Event{
		Type:       domain.EventVisit,
		OccurredAt: depart,
		EntityID:   "v-1",
		Visit:      &domain.VisitPayload{JobID: "job-a", Completed: true},
	}))
	require.NoError(t, eng.HandleEvent(context.Background(), domain.Event{
		Type:       domain.EventOrder,
		OccurredAt: depart,
		EntityID:   "v-1",
		Order:      &domain.OrderPayload{Action: domain.OrderCancelled, JobID: "job-b"},
	}))

	got, _ := eng.CurrentPlan("v-1")
	require.Equal(t, []string{"job-a", "job-c"}, stepIDs(got.Routes[0]))

	// The visited stop keeps its original schedule.
	orig := plan.Routes[0].Steps[0]
	assert.Equal(t, orig.ArriveAt, got.Routes[0].Steps[0].ArriveAt)
	assert.Equal(t, orig.DepartAt, got.Routes[0].Steps[0].DepartAt)
}

func TestIrrelevantTrafficReusesPlan(t *testing.T) {
	eng, comp, repo := newTestEngine(t)
	v := testVehicle("v-1", at(0, 0))
	jobs := lineJobs()
	plan := buildPlan(t, comp, v, jobs)
	eng.Track(v, jobs, plan)

	err := eng.HandleEvent(context.Background(), domain.Event{
		Type:       domain.EventTraffic,
		OccurredAt: depart,
		EntityID:   "v-1",
		Traffic: &domain.TrafficPayload{
			Center:       at(1, 1),
			RadiusMeters: 100,
			DelaySeconds: 1800,
		},
	})
	require.NoError(t, err)

	got, _ := eng.CurrentPlan("v-1")
	assert.Same(t, plan, got)
	assert.Equal(t, 0, repo.count())

	state, _ := eng.State("v-1")
	assert.Equal(t, StateFeasible, state)
}

func TestTrafficDelayWithinSlackStaysFeasible(t *testing.T) {
	eng, comp, repo := newTestEngine(t)
	v := testVehicle("v-1", at(0, 0))

	wide := &domain.TimeWindow{Start: depart, End: depart.Add(8 * time.Hour)}
	jobs := []domain.Job{
		testJob("job-a", at(0.01, 0), wide),
		testJob("job-b", at(0.02, 0), wide),
	}
	plan := buildPlan(t, comp, v, jobs)
	eng.Track(v, jobs, plan)

	err := eng.HandleEvent(context.Background(), domain.Event{
		Type:       domain.EventTraffic,
		OccurredAt: depart,
		EntityID:   "v-1",
		Traffic:    &domain.TrafficPayload{JobID: "job-a", DelaySeconds: 60},
	})
	require.NoError(t, err)

	got, _ := eng.CurrentPlan("v-1")
	assert.Same(t, plan, got)
	assert.Equal(t, 0, repo.count())
}

func TestTrafficDelayBreakingWindowTriggersRepair(t *testing.T) {
	eng, comp, repo := newTestEngine(t)
	v := testVehicle("v-1", at(0, 0))
	jobs := lineJobs()
	basePlan := buildPlan(t, comp, v, jobs)

	// Pin job-c's window just past its planned arrival so a sizeable delay
	// breaks it.
	cArrive := basePlan.Routes[0].Steps[2].ArriveAt
	jobs[2].Location.Window = &domain.TimeWindow{Start: depart, End: cArrive.Add(2 * time.Minute)}
	plan := buildPlan(t, comp, v, jobs)
	eng.Track(v, jobs, plan)

	err := eng.HandleEvent(context.Background(), domain.Event{
		Type:       domain.EventTraffic,
		OccurredAt: depart,
		EntityID:   "v-1",
		Traffic:    &domain.TrafficPayload{JobID: "job-c", DelaySeconds: 600},
	})
	require.NoError(t, err)

	got, _ := eng.CurrentPlan("v-1")
	assert.NotEqual(t, plan.ID, got.ID)
	assert.Len(t, got.Routes[0].Steps, 3)
	assert.Equal(t, 1, repo.count())

	state, _ := eng.State("v-1")
	assert.Equal(t, StateActive, state)
}

func TestAddedOrderEntersRepairedPlan(t *testing.T) {
	eng, comp, repo := newTestEngine(t)
	v := testVehicle("v-1", at(0, 0))
	jobs := lineJobs()
	plan := buildPlan(t, comp, v, jobs)
	eng.Track(v, jobs, plan)

	extra := testJob("job-d", at(0.015, 0.01), nil)
	extra.Priority = domain.PriorityUrgent
	err := eng.HandleEvent(context.Background(), domain.Event{
		Type:       domain.EventOrder,
		OccurredAt: depart,
		EntityID:   "v-1",
		Order:      &domain.OrderPayload{Action: domain.OrderAdded, JobID: "job-d", Job: &extra},
	})
	require.NoError(t, err)

	got, _ := eng.CurrentPlan("v-1")
	assert.Len(t, got.Routes[0].Steps, 4)
	assert.Contains(t, stepIDs(got.Routes[0]), "job-d")
	assert.Equal(t, 1, repo.count())
}

func TestUnplaceableStopFailsRoute(t *testing.T) {
	eng, comp, _ := newTestEngine(t)
	v := testVehicle("v-1", at(0, 0))
	jobs := lineJobs()
	plan := buildPlan(t, comp, v, jobs)
	eng.Track(v, jobs, plan)

	frozen := testJob("job-x", at(0.02, 0.02), nil)
	frozen.Skill = "refrigerated"
	err := eng.HandleEvent(context.Background(), domain.Event{
		Type:       domain.EventOrder,
		OccurredAt: depart,
		EntityID:   "v-1",
		Order:      &domain.OrderPayload{Action: domain.OrderAdded, JobID: "job-x", Job: &frozen},
	})
	require.Error(t, err)

	state, _ := eng.State("v-1")
	assert.Equal(t, StateFailed, state)

	// The prior plan is never silently replaced.
	got, _ := eng.CurrentPlan("v-1")
	assert.Same(t, plan, got)
}

func TestRepairReassignsToNearestIdleVehicle(t *testing.T) {
	eng, comp, repo := newTestEngine(t)
	v1 := testVehicle("v-1", at(0, 0))
	jobs := lineJobs()
	plan := buildPlan(t, comp, v1, jobs)
	eng.Track(v1, jobs, plan)

	v2 := testVehicle("v-2", at(0.02, 0.03), "refrigerated")
	eng.Track(v2, nil, &domain.SolutionResult{ID: "idle-v-2"})

	frozen := testJob("job-x", at(0.02, 0.02), nil)
	frozen.Skill = "refrigerated"
	err := eng.HandleEvent(context.Background(), domain.Event{
		Type:       domain.EventOrder,
		OccurredAt: depart,
		EntityID:   "v-1",
		Order:      &domain.OrderPayload{Action: domain.OrderAdded, JobID: "job-x", Job: &frozen},
	})
	require.NoError(t, err)

	v1Plan, _ := eng.CurrentPlan("v-1")
	assert.NotContains(t, stepIDs(v1Plan.Routes[0]), "job-x")

	v2Plan, _ := eng.CurrentPlan("v-2")
	require.Len(t, v2Plan.Routes, 1)
	assert.Contains(t, stepIDs(v2Plan.Routes[0]), "job-x")

	assert.Equal(t, 2, repo.count())
}

func TestEventForUnknownEntityErrors(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	err := eng.HandleEvent(context.Background(), domain.Event{
		Type:       domain.EventVisit,
		OccurredAt: depart,
		EntityID:   "ghost",
		Visit:      &domain.VisitPayload{JobID: "job-a", Completed: true},
	})
	require.Error(t, err)
}
