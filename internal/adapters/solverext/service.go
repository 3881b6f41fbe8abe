// Package solverext adapts external routing services (a low-latency
// heuristic solver and a constraint-programming solver) to the Solver
// contract. Both speak the same jobs/vehicles/matrix wire shape; only the
// base URL and the strategy tag differ.
package solverext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/solver"
)

type Service struct {
	session *http.Client
	baseURL string
	apiKey  string
	kind    solver.Type
}

func NewHeuristicService(baseURL, apiKey string) (*Service, error) {
	return newService(baseURL, apiKey, solver.TypeHeuristicService)
}

func NewConstraintService(baseURL, apiKey string) (*Service, error) {
	return newService(baseURL, apiKey, solver.TypeConstraintService)
}

func newService(baseURL, apiKey string, kind solver.Type) (*Service, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%s base URL is empty", kind)
	}
	return &Service{
		// Solver calls are never retried blindly: a failed or slow solve is
		// handled by the runner's greedy fallback, not by hammering the
		// service again. The transport timeout is a backstop; the per-call
		// budget arrives via ctx.
		session: &http.Client{Timeout: 60 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		kind:    kind,
	}, nil
}

func (s *Service) Type() solver.Type { return s.kind }

type wireJob struct {
	ID             string    `json:"id"`
	Location       []float64 `json:"location"`
	ServiceSeconds int       `json:"service"`
	Demand         []float64 `json:"demand"`
	Priority       int       `json:"priority"`
	Skill          string    `json:"skill,omitempty"`
	WindowStart    *int64    `json:"tw_start,omitempty"`
	WindowEnd      *int64    `json:"tw_end,omitempty"`
}

type wireVehicle struct {
	ID         string    `json:"id"`
	Start      []float64 `json:"start"`
	Capacity   []float64 `json:"capacity"`
	Skills     []string  `json:"skills,omitempty"`
	ShiftStart *int64    `json:"shift_start,omitempty"`
	ShiftEnd   *int64    `json:"shift_end,omitempty"`
	CostPerKm  float64   `json:"cost_per_km"`
	FixedCost  float64   `json:"fixed_cost"`
}

type solveRequest struct {
	Jobs             []wireJob     `json:"jobs"`
	Vehicles         []wireVehicle `json:"vehicles"`
	Durations        [][]int       `json:"durations"`
	Distances        [][]int       `json:"distances"`
	DepartAt         int64         `json:"depart_at"`
	MaxRouteSeconds  int           `json:"max_route_seconds,omitempty"`
	MaxStopsPerRoute int           `json:"max_stops_per_route,omitempty"`
}

type wireStep struct {
	JobID  string `json:"job_id"`
	Arrive int64  `json:"arrive"`
	Depart int64  `json:"depart"`
}

type wireRoute struct {
	VehicleID string     `json:"vehicle_id"`
	Steps     []wireStep `json:"steps"`
	Distance  int        `json:"distance"`
	Duration  int        `json:"duration"`
}

type wireUnassigned struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason"`
}

type solveResponse struct {
	Routes     []wireRoute      `json:"routes"`
	Unassigned []wireUnassigned `json:"unassigned"`
	Cost       float64          `json:"cost"`
}

func (s *Service) Solve(ctx context.Context, p *domain.RoutingProblem) (*domain.SolutionResult, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s solve: %w", s.kind, err)
	}

	payload, err := json.Marshal(s.encode(p))
	if err != nil {
		return nil, fmt.Errorf("%s solve: marshal request: %w", s.kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/solve", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s solve: create request: %w", s.kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", s.apiKey)
	}

	resp, err := s.session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s solve: request failed: %w", s.kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s solve: status %d: %s", s.kind, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var sr solveResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%s solve: decode response: %w", s.kind, err)
	}

	return s.decode(p, &sr)
}

func (s *Service) encode(p *domain.RoutingProblem) solveRequest {
	req := solveRequest{
		Durations:        p.Matrix.DurationSeconds,
		Distances:        p.Matrix.DistanceMeters,
		DepartAt:         p.DepartAt.Unix(),
		MaxRouteSeconds:  int(p.MaxRouteDuration / time.Second),
		MaxStopsPerRoute: p.MaxStopsPerVehicle,
	}

	for _, job := range p.Jobs {
		wj := wireJob{
			ID:             job.ID,
			Location:       job.Location.Point.CoordsToList(),
			ServiceSeconds: int(job.Location.ServiceDuration / time.Second),
			Demand:         []float64{job.Demand.WeightKg, job.Demand.VolumeM3, float64(job.Demand.Items)},
			Priority:       int(job.Priority),
			Skill:          job.Skill,
		}
		if w := job.Location.Window; w != nil {
			start, end := w.Start.Unix(), w.End.Unix()
			wj.WindowStart, wj.WindowEnd = &start, &end
		}
		req.Jobs = append(req.Jobs, wj)
	}

	for _, v := range p.Vehicles {
		wv := wireVehicle{
			ID:        v.ID,
			Start:     v.Start.Point.CoordsToList(),
			Capacity:  []float64{v.Capacity.WeightKg, v.Capacity.VolumeM3, float64(v.Capacity.Items)},
			Skills:    v.Skills,
			CostPerKm: v.CostPerKm,
			FixedCost: v.FixedCost,
		}
		if !v.Shift.Start.IsZero() {
			start := v.Shift.Start.Unix()
			wv.ShiftStart = &start
		}
		if !v.Shift.End.IsZero() {
			end := v.Shift.End.Unix()
			wv.ShiftEnd = &end
		}
		req.Vehicles = append(req.Vehicles, wv)
	}

	return req
}

var wireReasons = map[string]domain.UnassignedReason{
	"skill":    domain.ReasonNoSkilledVehicle,
	"capacity": domain.ReasonCapacityExceeded,
	"window":   domain.ReasonWindowConflict,
	"limit":    domain.ReasonRouteLimit,
}

func (s *Service) decode(p *domain.RoutingProblem, sr *solveResponse) (*domain.SolutionResult, error) {
	jobs := make(map[string]domain.Job, len(p.Jobs))
	for _, job := range p.Jobs {
		jobs[job.ID] = job
	}

	result := &domain.SolutionResult{
		ID:         uuid.NewString(),
		Cost:       sr.Cost,
		ComputedAt: time.Now(),
	}

	seen := make(map[string]struct{}, len(p.Jobs))
	for _, wr := range sr.Routes {
		route := domain.Route{
			VehicleID:       wr.VehicleID,
			DistanceMeters:  wr.Distance,
			DurationSeconds: wr.Duration,
		}
		load := domain.Demand{}
		for _, ws := range wr.Steps {
			job, ok := jobs[ws.JobID]
			if !ok {
				return nil, fmt.Errorf("%s solve: response references unknown job %q", s.kind, ws.JobID)
			}
			if _, dup := seen[ws.JobID]; dup {
				return nil, fmt.Errorf("%s solve: response assigns job %q twice", s.kind, ws.JobID)
			}
			seen[ws.JobID] = struct{}{}
			load = load.Add(job.Demand)
			route.Steps = append(route.Steps, domain.RouteStep{
				JobID:     ws.JobID,
				ArriveAt:  time.Unix(ws.Arrive, 0).UTC(),
				DepartAt:  time.Unix(ws.Depart, 0).UTC(),
				LoadAfter: load,
			})
		}
		result.Routes = append(result.Routes, route)
		result.TotalDistanceMeters += wr.Distance
		result.TotalDurationSeconds += wr.Duration
	}

	for _, wu := range sr.Unassigned {
		if _, ok := jobs[wu.JobID]; !ok {
			return nil, fmt.Errorf("%s solve: response unassigns unknown job %q", s.kind, wu.JobID)
		}
		reason, ok := wireReasons[wu.Reason]
		if !ok {
			reason = domain.ReasonRouteLimit
		}
		result.Unassigned = append(result.Unassigned, domain.UnassignedJob{JobID: wu.JobID, Reason: reason})
	}

	// Every job must be accounted for: assigned or unassigned, never lost.
	for id := range jobs {
		if _, ok := seen[id]; ok {
			continue
		}
		found := false
		for _, u := range result.Unassigned {
			if u.JobID == id {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%s solve: response dropped job %q", s.kind, id)
		}
	}

	return result, nil
}

var _ solver.Solver = (*Service)(nil)
