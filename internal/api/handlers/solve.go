package handlers

import (
	"log"
	"net/http"
	"time"

	"fieldops-routing-service/internal/api/dto"
	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/matrix"
	"fieldops-routing-service/internal/ports"
	"fieldops-routing-service/internal/solver"
)

const (
	defaultSolveTimeout = 10 * time.Second
	maxSolveTimeout     = 60 * time.Second
)

// RouteTracker registers solved routes for live supervision by the
// rerouting engine.
type RouteTracker interface {
	Track(vehicle domain.VehicleConfig, jobs []domain.Job, plan *domain.SolutionResult)
}

// SolveHandler answers ad-hoc routing problems: jobs plus vehicles in,
// routes and unassigned jobs out.
type SolveHandler struct {
	Runner   *solver.Runner
	Matrices *matrix.Computer
	// Tracker, when set, puts every solved route under rerouting watch.
	Tracker   RouteTracker
	Snapshots ports.SnapshotStore
}

func (h *SolveHandler) Solve(w http.ResponseWriter, r *http.Request) {
	var req dto.SolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Jobs) == 0 {
		writeError(w, r, http.StatusBadRequest, "at least one job is required")
		return
	}
	if len(req.Vehicles) == 0 {
		writeError(w, r, http.StatusBadRequest, "at least one vehicle is required")
		return
	}

	departAt := time.Now()
	if req.DepartAt != nil {
		departAt = *req.DepartAt
	}

	timeout := defaultSolveTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	if timeout > maxSolveTimeout {
		timeout = maxSolveTimeout
	}

	jobs := make([]domain.Job, 0, len(req.Jobs))
	for _, in := range req.Jobs {
		job, err := jobFromDTO(in)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		jobs = append(jobs, job)
	}

	vehicles := make([]domain.VehicleConfig, 0, len(req.Vehicles))
	points := make([]domain.LatLng, 0, len(req.Vehicles)+len(jobs))
	for _, in := range req.Vehicles {
		v, err := vehicleFromDTO(in, departAt)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		vehicles = append(vehicles, v)
		points = append(points, v.Start.Point)
	}
	for _, j := range jobs {
		points = append(points, j.Location.Point)
	}

	m, err := h.Matrices.Matrix(r.Context(), points, ports.ProfileRoadNetwork)
	if err != nil {
		log.Printf("solve matrix failed: %v", err)
		writeError(w, r, http.StatusBadGateway, "travel matrix unavailable")
		return
	}

	problem := &domain.RoutingProblem{
		Jobs:               jobs,
		Vehicles:           vehicles,
		Matrix:             m,
		DepartAt:           departAt,
		MaxRouteDuration:   time.Duration(req.MaxRouteSeconds) * time.Second,
		MaxStopsPerVehicle: req.MaxStopsPerVehicle,
	}

	result, err := h.Runner.Solve(r.Context(), problem, timeout)
	if err != nil {
		log.Printf("solve failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "no solution within budget")
		return
	}

	h.trackRoutes(r, vehicles, jobs, result)

	writeJSON(w, r, http.StatusOK, solveResponse(result))
}

// trackRoutes hands each used route to the rerouting engine and saves its
// snapshot for downstream broadcast.
func (h *SolveHandler) trackRoutes(
	r *http.Request,
	vehicles []domain.VehicleConfig,
	jobs []domain.Job,
	result *domain.SolutionResult,
) {
	if h.Tracker == nil && h.Snapshots == nil {
		return
	}

	jobsByID := make(map[string]domain.Job, len(jobs))
	for _, j := range jobs {
		jobsByID[j.ID] = j
	}

	for _, v := range vehicles {
		route, ok := result.RouteFor(v.ID)
		if !ok || len(route.Steps) == 0 {
			continue
		}
		routeJobs := make([]domain.Job, 0, len(route.Steps))
		for _, st := range route.Steps {
			if j, ok := jobsByID[st.JobID]; ok {
				routeJobs = append(routeJobs, j)
			}
		}
		if h.Tracker != nil {
			h.Tracker.Track(v, routeJobs, result)
		}
		if h.Snapshots != nil {
			if err := h.Snapshots.SaveSnapshot(r.Context(), v.ID, result); err != nil {
				log.Printf("solve snapshot write failed entity=%s err=%v", v.ID, err)
			}
		}
	}
}
