package solver

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"fieldops-routing-service/internal/domain"
)

func geneticTestProblem() *domain.RoutingProblem {
	capacity := domain.Demand{WeightKg: 1000, VolumeM3: 50, Items: 50}
	jobs := make([]domain.Job, 0, 12)
	for i := 0; i < 12; i++ {
		jobs = append(jobs, domain.Job{
			ID:       string(rune('a' + i)),
			Location: at(0.01*float64(i%4+1), 0.01*float64(i/4)),
			Demand:   domain.Demand{Items: 1},
		})
	}
	return finishProblem(&domain.RoutingProblem{
		Jobs: jobs,
		Vehicles: []domain.VehicleConfig{
			{ID: "v1", Capacity: capacity, Start: at(0, 0)},
			{ID: "v2", Capacity: capacity, Start: at(0.05, 0.02)},
		},
	})
}

func TestGeneticAssignsAllServableJobs(t *testing.T) {
	g := NewGenetic()
	g.Seed = 1
	g.MaxGenerations = 80

	result, err := g.Solve(context.Background(), geneticTestProblem())
	require.NoError(t, err)
	require.Empty(t, result.Unassigned)

	served := 0
	for _, r := range result.Routes {
		served += len(r.Steps)
	}
	require.Equal(t, 12, served)
}

func TestGeneticNoWorseThanGreedy(t *testing.T) {
	p := geneticTestProblem()

	greedyResult, err := NewGreedy().Solve(context.Background(), p)
	require.NoError(t, err)

	g := NewGenetic()
	g.Seed = 7
	gaResult, err := g.Solve(context.Background(), p)
	require.NoError(t, err)

	// The identity chromosome plus elitism guarantees the GA never loses
	// jobs greedy could place.
	require.LessOrEqual(t, len(gaResult.Unassigned), len(greedyResult.Unassigned))
}

func TestGeneticReturnsBestSoFarWhenAbandoned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGenetic()
	g.Seed = 3
	result, err := g.Solve(ctx, geneticTestProblem())
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestGeneticExcludesUnservableUpfront(t *testing.T) {
	p := geneticTestProblem()
	p.Jobs[0].Skill = "crane"
	g := NewGenetic()
	g.Seed = 5

	result, err := g.Solve(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, result.Unassigned, 1)
	require.Equal(t, domain.ReasonNoSkilledVehicle, result.Unassigned[0].Reason)
}

func TestOrderCrossoverYieldsPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := []int{0, 1, 2, 3, 4, 5, 6, 7}
	b := []int{7, 6, 5, 4, 3, 2, 1, 0}

	for i := 0; i < 200; i++ {
		child := orderCrossover(rng, a, b)
		require.Len(t, child, len(a))
		seen := make(map[int]bool, len(child))
		for _, gene := range child {
			require.False(t, seen[gene], "duplicate gene %d in %v", gene, child)
			seen[gene] = true
		}
	}
}

func TestMutationsPreservePermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		perm := rng.Perm(9)
		if i%2 == 0 {
			mutateSegmentSwap(rng, perm)
		} else {
			mutateRelocate(rng, perm)
		}
		seen := make(map[int]bool, len(perm))
		for _, gene := range perm {
			require.False(t, seen[gene], "duplicate gene %d in %v", gene, perm)
			seen[gene] = true
		}
	}
}
