package domain

import "time"

// Why a job could not be placed into any route.
type UnassignedReason string

const (
	ReasonNoSkilledVehicle UnassignedReason = "no_skilled_vehicle"
	ReasonCapacityExceeded UnassignedReason = "capacity_exceeded"
	ReasonWindowConflict   UnassignedReason = "time_window_conflict"
	ReasonRouteLimit       UnassignedReason = "route_limit_reached"
)

type UnassignedJob struct {
	JobID  string
	Reason UnassignedReason
}

// One stop in a planned route with its computed schedule and the vehicle
// load after servicing it.
type RouteStep struct {
	JobID     string
	ArriveAt  time.Time
	DepartAt  time.Time
	LoadAfter Demand
}

// Ordered sequence of stops assigned to one vehicle.
type Route struct {
	VehicleID       string
	Steps           []RouteStep
	DistanceMeters  int
	DurationSeconds int
}

// Output of one optimization call: one Route per used vehicle, the jobs that
// could not be placed (with reasons), and aggregate metrics.
//
// A SolutionResult is an immutable snapshot. Rerouting produces a new value
// and the owner atomically swaps its "current" reference; a prior result is
// never mutated in place.
type SolutionResult struct {
	ID                   string
	Routes               []Route
	Unassigned           []UnassignedJob
	TotalDistanceMeters  int
	TotalDurationSeconds int
	Cost                 float64
	ComputedAt           time.Time
}

// RouteFor returns the route assigned to the given vehicle, if any.
func (s *SolutionResult) RouteFor(vehicleID string) (Route, bool) {
	for _, r := range s.Routes {
		if r.VehicleID == vehicleID {
			return r, true
		}
	}
	return Route{}, false
}
