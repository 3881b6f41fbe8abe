package planner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops-routing-service/internal/adapters/cache"
	"fieldops-routing-service/internal/adapters/roadnet"
	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/matrix"
	"fieldops-routing-service/internal/solver"
)

var weekStart = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	comp := matrix.NewComputer(&roadnet.MockSource{}, cache.NewMemoryMatrixCache())
	registry := solver.NewRegistry()
	registry.Register(solver.NewGreedy())
	return NewPlanner(solver.NewRunner(registry), comp)
}

func testAgent(days, maxPerDay int) domain.Agent {
	return domain.Agent{
		ID:              "agent-1",
		Name:            "Test Agent",
		Home:            domain.Location{Point: domain.LatLng{Lat: 45, Lon: 7}},
		WorkingDays:     days,
		MaxVisitsPerDay: maxPerDay,
		DayStart:        domain.NewClockTime(8, 0, 0),
		DayEnd:          domain.NewClockTime(18, 0, 0),
	}
}

func client(id string, cat domain.VisitCategory, latOff, lonOff float64) domain.Client {
	return domain.Client{
		ID:       id,
		Name:     "Client " + id,
		Category: cat,
		Location: domain.Location{
			Point:           domain.LatLng{Lat: 45 + latOff, Lon: 7 + lonOff},
			ServiceDuration: 20 * time.Minute,
		},
	}
}

func visitCounts(plan *domain.WeekPlan) map[string]int {
	counts := make(map[string]int)
	for _, d := range plan.Days {
		for _, v := range d.Visits {
			counts[v.ClientID]++
		}
	}
	return counts
}

func TestRequiredVisitsPolicy(t *testing.T) {
	cases := []struct {
		cat  domain.VisitCategory
		week int
		want int
	}{
		{domain.CategoryA, 10, 2},
		{domain.CategoryA, 11, 2},
		{domain.CategoryB, 10, 1},
		{domain.CategoryB, 11, 1},
		{domain.CategoryC, 11, 1},
		{domain.CategoryC, 10, 0},
		{"unknown", 11, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, requiredVisits(tc.cat, tc.week), "%s week %d", tc.cat, tc.week)
	}
}

func TestClusteringIsExhaustiveAndDisjoint(t *testing.T) {
	var demands []visitDemand
	for i := 0; i < 17; i++ {
		c := client(fmt.Sprintf("c-%02d", i), domain.CategoryB, float64(i%4)*0.05, float64(i/4)*0.05)
		demands = append(demands, visitDemand{client: c, occurrence: 1})
	}

	groups := clusterVisits(demands, 4)
	require.Len(t, groups, 4)

	seen := make(map[string]int)
	total := 0
	for _, g := range groups {
		total += len(g)
		for _, d := range g {
			seen[d.client.ID]++
		}
	}
	assert.Equal(t, len(demands), total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "client %s clustered %d times", id, n)
	}
}

func TestClusteringClampsK(t *testing.T) {
	demands := []visitDemand{
		{client: client("c-1", domain.CategoryB, 0.01, 0), occurrence: 1},
		{client: client("c-2", domain.CategoryB, 0.02, 0), occurrence: 1},
	}
	groups := clusterVisits(demands, 5)
	assert.Len(t, groups, 2)
}

func TestPlanWeekTenBClientsFiveDays(t *testing.T) {
	p := newTestPlanner(t)
	agent := testAgent(5, 10)

	var clients []domain.Client
	for i := 0; i < 10; i++ {
		clients = append(clients, client(
			fmt.Sprintf("c-%02d", i), domain.CategoryB,
			float64(i%5)*0.03, float64(i/5)*0.03,
		))
	}

	plan, err := p.PlanWeek(context.Background(), agent, clients, weekStart, 11)
	require.NoError(t, err)

	require.Len(t, plan.Days, 5)
	assert.Equal(t, 10, plan.TotalVisits())
	for _, d := range plan.Days {
		assert.LessOrEqual(t, len(d.Visits), 10)
	}
	for id, n := range visitCounts(plan) {
		assert.Equal(t, 1, n, "client %s", id)
	}
}

func TestPlanWeekCategoryASecondVisitOnAnotherDay(t *testing.T) {
	p := newTestPlanner(t)
	agent := testAgent(5, 10)

	clients := []domain.Client{
		client("a-1", domain.CategoryA, 0.01, 0),
		client("b-1", domain.CategoryB, 0.05, 0.05),
		client("b-2", domain.CategoryB, -0.04, 0.02),
	}

	plan, err := p.PlanWeek(context.Background(), agent, clients, weekStart, 11)
	require.NoError(t, err)
	assert.Equal(t, 4, plan.TotalVisits())
	assert.Equal(t, 2, visitCounts(plan)["a-1"])

	days := make(map[int]int)
	for i, d := range plan.Days {
		for _, v := range d.Visits {
			if v.ClientID == "a-1" {
				days[i]++
			}
		}
	}
	assert.Len(t, days, 2, "both category A visits landed on the same day")
}

func TestPlanWeekCategoryCParity(t *testing.T) {
	p := newTestPlanner(t)
	agent := testAgent(5, 10)
	clients := []domain.Client{client("c-1", domain.CategoryC, 0.01, 0.01)}

	odd, err := p.PlanWeek(context.Background(), agent, clients, weekStart, 11)
	require.NoError(t, err)
	assert.Equal(t, 1, odd.TotalVisits())

	even, err := p.PlanWeek(context.Background(), agent, clients, weekStart.AddDate(0, 0, 7), 12)
	require.NoError(t, err)
	assert.Equal(t, 0, even.TotalVisits())
}

func TestPlanWeekEmptyPortfolio(t *testing.T) {
	p := newTestPlanner(t)
	agent := testAgent(5, 10)

	plan, err := p.PlanWeek(context.Background(), agent, nil, weekStart, 11)
	require.NoError(t, err)

	require.Len(t, plan.Days, 5)
	for i, d := range plan.Days {
		assert.Equal(t, weekStart.AddDate(0, 0, i), d.Date)
		assert.Empty(t, d.Visits)
	}
}

func TestPlanWeekOverCapacityFails(t *testing.T) {
	p := newTestPlanner(t)
	agent := testAgent(1, 10)

	var clients []domain.Client
	for i := 0; i < 12; i++ {
		clients = append(clients, client(
			fmt.Sprintf("c-%02d", i), domain.CategoryB,
			float64(i)*0.002, 0,
		))
	}

	plan, err := p.PlanWeek(context.Background(), agent, clients, weekStart, 11)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWeekOverCapacity)
	assert.Nil(t, plan)
}

func TestPlanWeekDayCapHoldsWhenSplitting(t *testing.T) {
	p := newTestPlanner(t)
	agent := testAgent(2, 10)

	var clients []domain.Client
	for i := 0; i < 12; i++ {
		clients = append(clients, client(
			fmt.Sprintf("c-%02d", i), domain.CategoryB,
			float64(i)*0.002, 0,
		))
	}

	plan, err := p.PlanWeek(context.Background(), agent, clients, weekStart, 11)
	require.NoError(t, err)
	assert.Equal(t, 12, plan.TotalVisits())
	for _, d := range plan.Days {
		assert.LessOrEqual(t, len(d.Visits), 10)
	}
}

func TestPlanWeekScheduleArithmetic(t *testing.T) {
	p := newTestPlanner(t)
	agent := testAgent(5, 10)

	clients := []domain.Client{
		client("b-1", domain.CategoryB, 0.01, 0),
		client("b-2", domain.CategoryB, 0.02, 0),
		client("b-3", domain.CategoryB, 0.03, 0),
	}

	plan, err := p.PlanWeek(context.Background(), agent, clients, weekStart, 11)
	require.NoError(t, err)

	for _, d := range plan.Days {
		dayStart := agent.DayStart.At(d.Date)
		dayEnd := agent.DayEnd.At(d.Date)
		var prevDepart time.Time
		for i, v := range d.Visits {
			assert.Equal(t, 20*time.Minute, v.DepartAt.Sub(v.ArriveAt))
			assert.False(t, v.ArriveAt.Before(dayStart))
			assert.False(t, v.DepartAt.After(dayEnd))
			if i > 0 {
				assert.True(t, v.ArriveAt.After(prevDepart), "arrival before previous departure")
			}
			prevDepart = v.DepartAt
		}
	}
}
