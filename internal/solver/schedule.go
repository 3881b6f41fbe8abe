package solver

import (
	"time"

	"fieldops-routing-service/internal/domain"
)

// cursor tracks the simulated state of one vehicle while a route is built
// stop by stop. Cursors are small values; tryAppend works on a copy so a
// rejected candidate leaves the route untouched.
type cursor struct {
	p          *domain.RoutingProblem
	v          int
	atIdx      int
	now        time.Time
	routeStart time.Time
	load       domain.Demand
	stops      int
	meters     int
	seconds    int
}

func newCursor(p *domain.RoutingProblem, v int) cursor {
	start := p.DepartAt
	shift := p.Vehicles[v].Shift
	if !shift.Start.IsZero() && shift.Start.After(start) {
		start = shift.Start
	}
	return cursor{
		p:          p,
		v:          v,
		atIdx:      p.VehicleIndex(v),
		now:        start,
		routeStart: start,
	}
}

// tryAppend schedules job j next on the route. It returns the advanced
// cursor and the computed step, or the constraint that rejected the job.
// overrun reports by how long the job's window would be missed; it is only
// meaningful when the rejection reason is a window conflict.
func (c cursor) tryAppend(j int) (next cursor, step domain.RouteStep, reason domain.UnassignedReason, overrun time.Duration, ok bool) {
	job := c.p.Jobs[j]
	vehicle := c.p.Vehicles[c.v]

	if !vehicle.HasSkill(job.Skill) {
		return c, domain.RouteStep{}, domain.ReasonNoSkilledVehicle, 0, false
	}

	load := c.load.Add(job.Demand)
	if !load.Fits(vehicle.Capacity) {
		return c, domain.RouteStep{}, domain.ReasonCapacityExceeded, 0, false
	}

	if c.p.MaxStopsPerVehicle > 0 && c.stops+1 > c.p.MaxStopsPerVehicle {
		return c, domain.RouteStep{}, domain.ReasonRouteLimit, 0, false
	}

	jIdx := c.p.JobIndex(j)
	travelSeconds := c.p.Matrix.Duration(c.atIdx, jIdx)
	travelMeters := c.p.Matrix.Distance(c.atIdx, jIdx)

	arrive := c.now.Add(time.Duration(travelSeconds) * time.Second)
	waited := 0
	if w := job.Location.Window; w != nil {
		if arrive.Before(w.Start) {
			waited = int(w.Start.Sub(arrive) / time.Second)
			arrive = w.Start
		}
		if arrive.After(w.End) {
			return c, domain.RouteStep{}, domain.ReasonWindowConflict, arrive.Sub(w.End), false
		}
	}

	depart := arrive.Add(job.Location.ServiceDuration)

	if end := vehicle.Shift.End; !end.IsZero() && depart.After(end) {
		return c, domain.RouteStep{}, domain.ReasonWindowConflict, depart.Sub(end), false
	}
	if c.p.MaxRouteDuration > 0 && depart.Sub(c.routeStart) > c.p.MaxRouteDuration {
		return c, domain.RouteStep{}, domain.ReasonRouteLimit, 0, false
	}

	c.atIdx = jIdx
	c.now = depart
	c.load = load
	c.stops++
	c.meters += travelMeters
	c.seconds += travelSeconds + waited + int(job.Location.ServiceDuration/time.Second)

	step = domain.RouteStep{
		JobID:     job.ID,
		ArriveAt:  arrive,
		DepartAt:  depart,
		LoadAfter: load,
	}
	return c, step, "", 0, true
}

// tryAppendLenient is tryAppend with soft time windows: a missed window does
// not reject the job, the overrun is returned for the caller to penalize.
// Skill, capacity and stop-count limits stay hard.
func (c cursor) tryAppendLenient(j int) (next cursor, overrun time.Duration, ok bool) {
	job := c.p.Jobs[j]
	vehicle := c.p.Vehicles[c.v]

	if !vehicle.HasSkill(job.Skill) {
		return c, 0, false
	}
	load := c.load.Add(job.Demand)
	if !load.Fits(vehicle.Capacity) {
		return c, 0, false
	}
	if c.p.MaxStopsPerVehicle > 0 && c.stops+1 > c.p.MaxStopsPerVehicle {
		return c, 0, false
	}

	jIdx := c.p.JobIndex(j)
	travelSeconds := c.p.Matrix.Duration(c.atIdx, jIdx)
	travelMeters := c.p.Matrix.Distance(c.atIdx, jIdx)

	arrive := c.now.Add(time.Duration(travelSeconds) * time.Second)
	waited := 0
	if w := job.Location.Window; w != nil {
		if arrive.Before(w.Start) {
			waited = int(w.Start.Sub(arrive) / time.Second)
			arrive = w.Start
		}
		if arrive.After(w.End) {
			overrun = arrive.Sub(w.End)
		}
	}

	depart := arrive.Add(job.Location.ServiceDuration)
	if end := vehicle.Shift.End; !end.IsZero() && depart.After(end) {
		overrun += depart.Sub(end)
	}

	c.atIdx = jIdx
	c.now = depart
	c.load = load
	c.stops++
	c.meters += travelMeters
	c.seconds += travelSeconds + waited + int(job.Location.ServiceDuration/time.Second)
	return c, overrun, true
}

// travelTo returns the travel time in seconds from the cursor position to
// job j, the quantity greedy insertion minimizes.
func (c cursor) travelTo(j int) int {
	return c.p.Matrix.Duration(c.atIdx, c.p.JobIndex(j))
}

// buildRoute replays an ordered job sequence for vehicle v in strict mode.
// Jobs that violate a constraint are skipped, never silently bent.
func buildRoute(p *domain.RoutingProblem, v int, order []int) (domain.Route, []int) {
	cur := newCursor(p, v)
	route := domain.Route{VehicleID: p.Vehicles[v].ID}
	var skipped []int

	for _, j := range order {
		next, step, _, _, ok := cur.tryAppend(j)
		if !ok {
			skipped = append(skipped, j)
			continue
		}
		cur = next
		route.Steps = append(route.Steps, step)
	}

	route.DistanceMeters = cur.meters
	route.DurationSeconds = cur.seconds
	return route, skipped
}

// routeCost prices a finished route for a vehicle.
func routeCost(v domain.VehicleConfig, r domain.Route) float64 {
	if len(r.Steps) == 0 {
		return 0
	}
	return v.FixedCost + v.CostPerKm*float64(r.DistanceMeters)/1000
}
