package solverext

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/solver"
)

func serviceTestProblem() *domain.RoutingProblem {
	points := []domain.LatLng{{Lat: 45, Lon: 7}, {Lat: 45.01, Lon: 7}, {Lat: 45.02, Lon: 7}}
	n := len(points)
	m := &domain.TravelMatrix{Points: points}
	for i := 0; i < n; i++ {
		m.DistanceMeters = append(m.DistanceMeters, make([]int, n))
		m.DurationSeconds = append(m.DurationSeconds, make([]int, n))
		for j := 0; j < n; j++ {
			if i != j {
				m.DistanceMeters[i][j] = 1000
				m.DurationSeconds[i][j] = 120
			}
		}
	}
	return &domain.RoutingProblem{
		Jobs: []domain.Job{
			{ID: "j1", Location: domain.Location{Point: points[1]}},
			{ID: "j2", Location: domain.Location{Point: points[2]}},
		},
		Vehicles: []domain.VehicleConfig{{ID: "v1", Start: domain.Location{Point: points[0]}}},
		Matrix:   m,
		DepartAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}

func TestServiceSolveDecodesAssignment(t *testing.T) {
	depart := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/solve", r.URL.Path)

		var req solveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Jobs, 2)
		require.Len(t, req.Vehicles, 1)
		require.Len(t, req.Durations, 3)

		json.NewEncoder(w).Encode(solveResponse{
			Routes: []wireRoute{{
				VehicleID: "v1",
				Steps: []wireStep{
					{JobID: "j1", Arrive: depart.Add(2 * time.Minute).Unix(), Depart: depart.Add(10 * time.Minute).Unix()},
					{JobID: "j2", Arrive: depart.Add(12 * time.Minute).Unix(), Depart: depart.Add(20 * time.Minute).Unix()},
				},
				Distance: 2000,
				Duration: 240,
			}},
			Cost: 12.5,
		})
	}))
	defer srv.Close()

	svc, err := NewHeuristicService(srv.URL, "")
	require.NoError(t, err)
	require.Equal(t, solver.TypeHeuristicService, svc.Type())

	result, err := svc.Solve(context.Background(), serviceTestProblem())
	require.NoError(t, err)
	require.Len(t, result.Routes, 1)
	require.Len(t, result.Routes[0].Steps, 2)
	require.Equal(t, 2000, result.TotalDistanceMeters)
	require.Equal(t, 12.5, result.Cost)
	require.Empty(t, result.Unassigned)
}

func TestServiceSolveRejectsDroppedJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// j2 is neither assigned nor reported unassigned.
		json.NewEncoder(w).Encode(solveResponse{
			Routes: []wireRoute{{
				VehicleID: "v1",
				Steps:     []wireStep{{JobID: "j1"}},
			}},
		})
	}))
	defer srv.Close()

	svc, err := NewConstraintService(srv.URL, "key")
	require.NoError(t, err)

	_, err = svc.Solve(context.Background(), serviceTestProblem())
	require.ErrorContains(t, err, "dropped job")
}

func TestServiceSolveSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "solver overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, err := NewHeuristicService(srv.URL, "")
	require.NoError(t, err)

	_, err = svc.Solve(context.Background(), serviceTestProblem())
	require.ErrorContains(t, err, "status 503")
}

func TestServiceSolveHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background read and can
		// observe the client disconnect; otherwise r.Context() is never
		// cancelled and the deferred srv.Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	svc, err := NewHeuristicService(srv.URL, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = svc.Solve(ctx, serviceTestProblem())
	require.Error(t, err)
	require.Less(t, time.Since(start), time.Second)
}
