package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/matrix"
	"fieldops-routing-service/internal/platform/obs"
	"fieldops-routing-service/internal/ports"
	"fieldops-routing-service/internal/solver"
)

const (
	defaultWorkingDays     = 5
	maxWorkingDays         = 6
	defaultMaxVisitsPerDay = 10
	defaultDayTimeout      = 5 * time.Second
	// dayConcurrency bounds parallel per-day sequencing runs.
	dayConcurrency = 3
)

// ErrWeekOverCapacity reports a week whose due visits cannot all fit under
// the per-day visit cap. The planner fails rather than overload a day or
// drop a visit.
var ErrWeekOverCapacity = errors.New("week demand exceeds day capacity")

type Planner struct {
	runner     *solver.Runner
	matrices   *matrix.Computer
	dayTimeout time.Duration
}

func NewPlanner(runner *solver.Runner, matrices *matrix.Computer) *Planner {
	return &Planner{
		runner:     runner,
		matrices:   matrices,
		dayTimeout: defaultDayTimeout,
	}
}

// PlanWeek produces one DayPlan per working day for the agent's portfolio.
// Clients owing no visit this week are left out; a day without due clients
// yields an empty, valid plan.
func (p *Planner) PlanWeek(
	ctx context.Context,
	agent domain.Agent,
	clients []domain.Client,
	weekStart time.Time,
	weekNumber int,
) (_ *domain.WeekPlan, err error) {
	defer obs.Time(ctx, "planner.PlanWeek")(&err)

	workingDays := agent.WorkingDays
	if workingDays <= 0 {
		workingDays = defaultWorkingDays
	}
	if workingDays > maxWorkingDays {
		workingDays = maxWorkingDays
	}
	maxPerDay := agent.MaxVisitsPerDay
	if maxPerDay <= 0 {
		maxPerDay = defaultMaxVisitsPerDay
	}

	plan := &domain.WeekPlan{
		AgentID:    agent.ID,
		WeekStart:  weekStart,
		WeekNumber: weekNumber,
		Days:       make([]domain.DayPlan, workingDays),
	}
	for i := range plan.Days {
		plan.Days[i] = domain.DayPlan{Date: weekStart.AddDate(0, 0, i)}
	}

	first, second := dueVisits(clients, weekNumber)
	if len(first) == 0 {
		return plan, nil
	}

	k := workingDays
	if len(first) < k {
		k = len(first)
	}
	clusters := clusterVisits(first, k)
	batches, err := assignDays(clusters, second, workingDays, maxPerDay)
	if err != nil {
		return nil, fmt.Errorf("plan week for agent %s: %w", agent.ID, err)
	}

	log.Printf(
		"weekly plan agent=%s week=%d due=%d clusters=%d",
		agent.ID, weekNumber, len(first)+len(second), len(clusters),
	)

	leftovers, err := p.solveDays(ctx, agent, plan, batches)
	if err != nil {
		return nil, err
	}
	if err := p.absorbLeftovers(ctx, agent, plan, batches, leftovers, maxPerDay); err != nil {
		return nil, err
	}
	return plan, nil
}

// solveDays sequences every non-empty day concurrently and returns the
// demands no day schedule could hold.
func (p *Planner) solveDays(
	ctx context.Context,
	agent domain.Agent,
	plan *domain.WeekPlan,
	batches [][]visitDemand,
) ([]visitDemand, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dayConcurrency)

	left := make([][]visitDemand, len(batches))
	for i := range batches {
		if len(batches[i]) == 0 {
			continue
		}
		i := i
		g.Go(func() error {
			day, rest, err := p.solveDay(gctx, agent, plan.Days[i].Date, batches[i])
			if err != nil {
				return fmt.Errorf("plan day %s: %w", plan.Days[i].Date.Format("2006-01-02"), err)
			}
			plan.Days[i] = day
			left[i] = rest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var leftovers []visitDemand
	for i, rest := range left {
		if len(rest) == 0 {
			continue
		}
		// Drop the unscheduled demands from the day's batch so a retry does
		// not double-count them.
		batches[i] = scheduledOnly(batches[i], rest)
		leftovers = append(leftovers, rest...)
	}
	return leftovers, nil
}

// absorbLeftovers retries unscheduled demands on the least-loaded days with
// spare capacity. A demand no day can take fails the whole plan; visits are
// never dropped silently.
func (p *Planner) absorbLeftovers(
	ctx context.Context,
	agent domain.Agent,
	plan *domain.WeekPlan,
	batches [][]visitDemand,
	leftovers []visitDemand,
	maxPerDay int,
) error {
	for _, d := range leftovers {
		order := daysByLoad(batches)
		placed := false
		for _, i := range order {
			if len(batches[i]) >= maxPerDay {
				continue
			}
			trial := append(append([]visitDemand(nil), batches[i]...), d)
			day, rest, err := p.solveDay(ctx, agent, plan.Days[i].Date, trial)
			if err != nil {
				return fmt.Errorf("replan day %s: %w", plan.Days[i].Date.Format("2006-01-02"), err)
			}
			if len(rest) > 0 {
				continue
			}
			batches[i] = trial
			plan.Days[i] = day
			placed = true
			break
		}
		if !placed {
			return fmt.Errorf(
				"plan week for agent %s: no feasible day for client %s visit %d",
				agent.ID, d.client.ID, d.occurrence,
			)
		}
	}
	return nil
}

// solveDay sequences one day's visits as a single-vehicle problem: the agent
// starts and ends at home within the day window. Arrival is the previous
// departure plus travel, departure adds the service duration.
func (p *Planner) solveDay(
	ctx context.Context,
	agent domain.Agent,
	date time.Time,
	batch []visitDemand,
) (domain.DayPlan, []visitDemand, error) {
	day := domain.DayPlan{Date: date}
	if len(batch) == 0 {
		return day, nil, nil
	}

	dayStart := agent.DayStart.At(date)
	dayEnd := agent.DayEnd.At(date)
	vehicle := domain.VehicleConfig{
		ID:    agent.ID,
		Start: agent.Home,
		End:   agent.Home,
		Shift: domain.TimeWindow{Start: dayStart, End: dayEnd},
	}

	jobs := make([]domain.Job, 0, len(batch))
	byJobID := make(map[string]visitDemand, len(batch))
	points := make([]domain.LatLng, 0, len(batch)+1)
	points = append(points, agent.Home.Point)
	for _, d := range batch {
		id := d.client.ID
		if d.occurrence > 1 {
			id = fmt.Sprintf("%s@%d", d.client.ID, d.occurrence)
		}
		jobs = append(jobs, domain.Job{ID: id, Location: d.client.Location})
		byJobID[id] = d
		points = append(points, d.client.Location.Point)
	}

	m, err := p.matrices.Matrix(ctx, points, ports.ProfileRoadNetwork)
	if err != nil {
		return day, nil, fmt.Errorf("day matrix: %w", err)
	}

	result, err := p.runner.Solve(ctx, &domain.RoutingProblem{
		Jobs:     jobs,
		Vehicles: []domain.VehicleConfig{vehicle},
		Matrix:   m,
		DepartAt: dayStart,
	}, p.dayTimeout)
	if err != nil {
		return day, nil, fmt.Errorf("sequence day: %w", err)
	}

	route, _ := result.RouteFor(agent.ID)
	for _, st := range route.Steps {
		d := byJobID[st.JobID]
		day.Visits = append(day.Visits, domain.PlannedVisit{
			ClientID: d.client.ID,
			ArriveAt: st.ArriveAt,
			DepartAt: st.DepartAt,
		})
	}
	day.DistanceMeters = route.DistanceMeters
	day.DurationSeconds = route.DurationSeconds

	var rest []visitDemand
	for _, u := range result.Unassigned {
		rest = append(rest, byJobID[u.JobID])
	}
	return day, rest, nil
}

// assignDays maps clusters onto days, splitting any cluster over the day
// cap, then places category A second visits on a different day than their
// first whenever the week has more than one working day. A demand no day can
// take under the cap fails the assignment.
func assignDays(
	clusters [][]visitDemand,
	second []visitDemand,
	days, maxPerDay int,
) ([][]visitDemand, error) {
	batches := make([][]visitDemand, days)
	firstDay := make(map[string]int)

	for i, cl := range clusters {
		home := i % days
		for _, d := range cl {
			target := home
			if len(batches[target]) >= maxPerDay {
				target = pickDay(batches, maxPerDay, -1)
				if target < 0 {
					return nil, fmt.Errorf("%w: no day for client %s", ErrWeekOverCapacity, d.client.ID)
				}
				log.Printf(
					"cluster split client=%s from_day=%d to_day=%d",
					d.client.ID, home, target,
				)
			}
			batches[target] = append(batches[target], d)
			firstDay[d.client.ID] = target
		}
	}

	for _, d := range second {
		exclude := -1
		if days > 1 {
			exclude = firstDay[d.client.ID]
		}
		target := pickDay(batches, maxPerDay, exclude)
		if target < 0 {
			// The different-day rule is a preference, the cap is not.
			target = pickDay(batches, maxPerDay, -1)
		}
		if target < 0 {
			return nil, fmt.Errorf("%w: no day for client %s visit %d", ErrWeekOverCapacity, d.client.ID, d.occurrence)
		}
		batches[target] = append(batches[target], d)
	}
	return batches, nil
}

// pickDay returns the least-loaded day under the cap, skipping exclude, or
// -1 when every candidate day is full.
func pickDay(batches [][]visitDemand, maxPerDay, exclude int) int {
	best := -1
	for i := range batches {
		if i == exclude || len(batches[i]) >= maxPerDay {
			continue
		}
		if best < 0 || len(batches[i]) < len(batches[best]) {
			best = i
		}
	}
	return best
}

func daysByLoad(batches [][]visitDemand) []int {
	order := make([]int, len(batches))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return len(batches[order[a]]) < len(batches[order[b]])
	})
	return order
}

// scheduledOnly filters out the demands that ended up unscheduled.
func scheduledOnly(batch, unscheduled []visitDemand) []visitDemand {
	drop := make(map[string]struct{}, len(unscheduled))
	for _, d := range unscheduled {
		drop[demandKey(d)] = struct{}{}
	}
	var out []visitDemand
	for _, d := range batch {
		if _, gone := drop[demandKey(d)]; gone {
			continue
		}
		out = append(out, d)
	}
	return out
}

func demandKey(d visitDemand) string {
	return fmt.Sprintf("%s@%d", d.client.ID, d.occurrence)
}
