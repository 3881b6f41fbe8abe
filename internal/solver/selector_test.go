package solver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fieldops-routing-service/internal/domain"
)

func TestSelectorPolicy(t *testing.T) {
	s := NewSelector()

	cases := []struct {
		name     string
		features ProblemFeatures
		want     Type
	}{
		{"tiny problem", ProblemFeatures{JobCount: 5, VehicleCount: 2}, TypeGreedy},
		{"single vehicle", ProblemFeatures{JobCount: 40, VehicleCount: 1}, TypeGreedy},
		{"skills present", ProblemFeatures{JobCount: 40, VehicleCount: 4, HasSkills: true}, TypeConstraintService},
		{"tight windows", ProblemFeatures{JobCount: 40, VehicleCount: 4, WindowTightness: 0.8}, TypeConstraintService},
		{"large unconstrained", ProblemFeatures{JobCount: 120, VehicleCount: 8}, TypeHeuristicService},
		{"huge problem", ProblemFeatures{JobCount: 500, VehicleCount: 20}, TypeGenetic},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := s.Pick(tc.features)
			assert.Equal(t, tc.want, d.Type)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestExtractFeatures(t *testing.T) {
	depart := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	tight := domain.TimeWindow{Start: depart, End: depart.Add(30 * time.Minute)}
	loose := domain.TimeWindow{Start: depart, End: depart.Add(8 * time.Hour)}

	p := finishProblem(&domain.RoutingProblem{
		Jobs: []domain.Job{
			{ID: "a", Location: domain.Location{Point: at(0, 0).Point, Window: &tight}},
			{ID: "b", Location: domain.Location{Point: at(0.1, 0.1).Point, Window: &loose}},
			{ID: "c", Location: at(0.05, 0.05), Skill: "lift"},
			{ID: "d", Location: at(0.02, 0.08)},
		},
		Vehicles: []domain.VehicleConfig{{ID: "v1", Start: at(0, 0)}},
	})

	f := Extract(p)
	assert.Equal(t, 4, f.JobCount)
	assert.Equal(t, 1, f.VehicleCount)
	assert.True(t, f.HasSkills)
	assert.InDelta(t, 0.25, f.WindowTightness, 1e-9)
	assert.Greater(t, f.SpreadKm, 10.0)
}
