package domain

import (
	"errors"
	"fmt"
	"time"
)

// Pairwise travel distances and durations between a set of coordinates.
// Row i / column j is travel from Points[i] to Points[j].
type TravelMatrix struct {
	Points          []LatLng
	DistanceMeters  [][]int
	DurationSeconds [][]int
}

func (m *TravelMatrix) Size() int { return len(m.Points) }

func (m *TravelMatrix) Distance(i, j int) int { return m.DistanceMeters[i][j] }

func (m *TravelMatrix) Duration(i, j int) int { return m.DurationSeconds[i][j] }

// The solver's sole input. Matrix indexing convention: rows 0..len(Vehicles)-1
// are vehicle start locations, the rest are jobs in order.
type RoutingProblem struct {
	Jobs     []Job
	Vehicles []VehicleConfig
	Matrix   *TravelMatrix

	DepartAt           time.Time
	MaxRouteDuration   time.Duration
	MaxStopsPerVehicle int
}

// Matrix row/column of vehicle v's start location.
func (p *RoutingProblem) VehicleIndex(v int) int { return v }

// Matrix row/column of job j's location.
func (p *RoutingProblem) JobIndex(j int) int { return len(p.Vehicles) + j }

// Validate checks the structural invariants a solver relies on.
func (p *RoutingProblem) Validate() error {
	if len(p.Vehicles) == 0 {
		return errors.New("routing problem: vehicle list must not be empty")
	}
	if p.Matrix == nil {
		return errors.New("routing problem: matrix is required")
	}
	if want := len(p.Vehicles) + len(p.Jobs); p.Matrix.Size() != want {
		return fmt.Errorf(
			"routing problem: matrix size %d does not cover %d vehicles + %d jobs",
			p.Matrix.Size(), len(p.Vehicles), len(p.Jobs),
		)
	}
	return nil
}

// UnservableJobs returns jobs whose skill no vehicle in the problem carries.
// These are reported unassignable up front, never silently dropped.
func (p *RoutingProblem) UnservableJobs() []UnassignedJob {
	var out []UnassignedJob
	for _, job := range p.Jobs {
		if job.Skill == "" {
			continue
		}
		served := false
		for _, v := range p.Vehicles {
			if v.HasSkill(job.Skill) {
				served = true
				break
			}
		}
		if !served {
			out = append(out, UnassignedJob{JobID: job.ID, Reason: ReasonNoSkilledVehicle})
		}
	}
	return out
}
