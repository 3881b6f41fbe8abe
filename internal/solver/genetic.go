package solver

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"fieldops-routing-service/internal/domain"
)

// Genetic is the in-process evolutionary strategy for problems too large for
// the synchronous external services. It trades solve time for solution
// quality under an explicit time budget: the run returns its best candidate
// when the generation cap, the convergence window or the context deadline is
// reached, whichever comes first.
type Genetic struct {
	PopulationSize int
	EliteCount     int
	TournamentSize int
	MaxGenerations int
	// StallWindow is the number of generations without fitness improvement
	// after which the run is considered converged.
	StallWindow  int
	MutationRate float64

	// Fitness weights: meters plus penalties, lower is better.
	ViolationWeightPerSecond float64
	UnassignedPenaltyMeters  float64

	// Seed pins the RNG for reproducible runs; 0 seeds from the clock.
	Seed int64
}

func NewGenetic() *Genetic {
	return &Genetic{
		PopulationSize:           60,
		EliteCount:               4,
		TournamentSize:           3,
		MaxGenerations:           400,
		StallWindow:              40,
		MutationRate:             0.25,
		ViolationWeightPerSecond: 50,
		UnassignedPenaltyMeters:  250000,
	}
}

func (*Genetic) Type() Type { return TypeGenetic }

func (g *Genetic) Solve(ctx context.Context, p *domain.RoutingProblem) (*domain.SolutionResult, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("genetic solve: %w", err)
	}

	upfront := p.UnservableJobs()
	excluded := make(map[string]struct{}, len(upfront))
	for _, u := range upfront {
		excluded[u.JobID] = struct{}{}
	}

	var genes []int
	for j, job := range p.Jobs {
		if _, skip := excluded[job.ID]; !skip {
			genes = append(genes, j)
		}
	}
	if len(genes) == 0 {
		return &domain.SolutionResult{
			ID:         uuid.NewString(),
			Unassigned: upfront,
			ComputedAt: time.Now(),
		}, nil
	}

	seed := g.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	pop := g.seedPopulation(rng, genes)
	fitness := make([]float64, len(pop))
	for i, perm := range pop {
		fitness[i] = g.fitness(p, perm)
	}

	best := append([]int(nil), pop[0]...)
	bestFitness := fitness[0]
	for i := range pop {
		if fitness[i] < bestFitness {
			bestFitness = fitness[i]
			best = append(best[:0], pop[i]...)
		}
	}

	stall := 0
	for gen := 0; gen < g.MaxGenerations; gen++ {
		// An abandoned run must stop burning its worker promptly; the best
		// candidate found so far is still a valid answer.
		if ctx.Err() != nil {
			break
		}
		if stall >= g.StallWindow {
			break
		}

		next := make([][]int, 0, len(pop))
		next = append(next, g.elites(pop, fitness)...)

		for len(next) < len(pop) {
			a := g.tournament(rng, pop, fitness)
			b := g.tournament(rng, pop, fitness)
			child := orderCrossover(rng, a, b)
			if rng.Float64() < g.MutationRate {
				if rng.Intn(2) == 0 {
					mutateSegmentSwap(rng, child)
				} else {
					mutateRelocate(rng, child)
				}
			}
			next = append(next, child)
		}

		pop = next
		improved := false
		for i, perm := range pop {
			fitness[i] = g.fitness(p, perm)
			if fitness[i] < bestFitness {
				bestFitness = fitness[i]
				best = append(best[:0], perm...)
				improved = true
			}
		}
		if improved {
			stall = 0
		} else {
			stall++
		}
	}

	return g.finalize(p, best, upfront), nil
}

func (g *Genetic) seedPopulation(rng *rand.Rand, genes []int) [][]int {
	pop := make([][]int, g.PopulationSize)
	// One identity chromosome keeps the caller's job order in the gene pool.
	pop[0] = append([]int(nil), genes...)
	for i := 1; i < g.PopulationSize; i++ {
		perm := append([]int(nil), genes...)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		pop[i] = perm
	}
	return pop
}

// fitness decodes a chromosome with soft windows and prices the outcome:
// distance plus weighted window violations plus a penalty per unplaced job.
func (g *Genetic) fitness(p *domain.RoutingProblem, perm []int) float64 {
	cursors := make([]cursor, len(p.Vehicles))
	for v := range p.Vehicles {
		cursors[v] = newCursor(p, v)
	}

	violationSeconds := 0.0
	unassigned := 0

	for _, j := range perm {
		placed := false
		for v := range cursors {
			next, overrun, ok := cursors[v].tryAppendLenient(j)
			if !ok {
				continue
			}
			cursors[v] = next
			violationSeconds += overrun.Seconds()
			placed = true
			break
		}
		if !placed {
			unassigned++
		}
	}

	meters := 0
	for _, c := range cursors {
		meters += c.meters
	}
	return float64(meters) +
		g.ViolationWeightPerSecond*violationSeconds +
		g.UnassignedPenaltyMeters*float64(unassigned)
}

// finalize replays the best chromosome strictly: jobs that only fit by
// bending a window are reported unassigned instead.
func (g *Genetic) finalize(p *domain.RoutingProblem, perm []int, upfront []domain.UnassignedJob) *domain.SolutionResult {
	orders := make([][]int, len(p.Vehicles))
	cursors := make([]cursor, len(p.Vehicles))
	for v := range p.Vehicles {
		cursors[v] = newCursor(p, v)
	}

	var leftover []int
	for _, j := range perm {
		placed := false
		for v := range cursors {
			next, _, _, _, ok := cursors[v].tryAppend(j)
			if !ok {
				continue
			}
			cursors[v] = next
			orders[v] = append(orders[v], j)
			placed = true
			break
		}
		if !placed {
			leftover = append(leftover, j)
		}
	}

	result := &domain.SolutionResult{
		ID:         uuid.NewString(),
		Unassigned: upfront,
		ComputedAt: time.Now(),
	}
	for v, order := range orders {
		if len(order) == 0 {
			continue
		}
		route, _ := buildRoute(p, v, order)
		result.Routes = append(result.Routes, route)
		result.TotalDistanceMeters += route.DistanceMeters
		result.TotalDurationSeconds += route.DurationSeconds
		result.Cost += routeCost(p.Vehicles[v], route)
	}
	for _, j := range leftover {
		result.Unassigned = append(result.Unassigned, domain.UnassignedJob{
			JobID:  p.Jobs[j].ID,
			Reason: attributeReason(p, j),
		})
	}
	return result
}

func (g *Genetic) elites(pop [][]int, fitness []float64) [][]int {
	idx := make([]int, len(pop))
	for i := range idx {
		idx[i] = i
	}
	// Partial selection sort: EliteCount is tiny compared to the population.
	for e := 0; e < g.EliteCount && e < len(idx); e++ {
		bestAt := e
		for i := e + 1; i < len(idx); i++ {
			if fitness[idx[i]] < fitness[idx[bestAt]] {
				bestAt = i
			}
		}
		idx[e], idx[bestAt] = idx[bestAt], idx[e]
	}

	out := make([][]int, 0, g.EliteCount)
	for e := 0; e < g.EliteCount && e < len(idx); e++ {
		out = append(out, append([]int(nil), pop[idx[e]]...))
	}
	return out
}

func (g *Genetic) tournament(rng *rand.Rand, pop [][]int, fitness []float64) []int {
	best := rng.Intn(len(pop))
	for i := 1; i < g.TournamentSize; i++ {
		c := rng.Intn(len(pop))
		if fitness[c] < fitness[best] {
			best = c
		}
	}
	return pop[best]
}

// orderCrossover applies OX1: a slice of parent a survives in place, the
// remaining genes fill in following parent b's relative order.
func orderCrossover(rng *rand.Rand, a, b []int) []int {
	n := len(a)
	if n < 2 {
		return append([]int(nil), a...)
	}
	lo := rng.Intn(n)
	hi := lo + 1 + rng.Intn(n-lo)

	child := make([]int, n)
	taken := make(map[int]bool, hi-lo)
	for i := lo; i < hi; i++ {
		child[i] = a[i]
		taken[a[i]] = true
	}

	at := hi % n
	for i := 0; i < n; i++ {
		gene := b[(hi+i)%n]
		if taken[gene] {
			continue
		}
		child[at] = gene
		at = (at + 1) % n
		if at == lo {
			at = hi % n
		}
	}
	return child
}

func mutateSegmentSwap(rng *rand.Rand, perm []int) {
	n := len(perm)
	if n < 2 {
		return
	}
	segLen := 1 + rng.Intn(max(1, n/4))
	if 2*segLen > n {
		segLen = n / 2
	}
	if segLen < 1 {
		i, j := rng.Intn(n), rng.Intn(n)
		perm[i], perm[j] = perm[j], perm[i]
		return
	}
	// Two disjoint segments of equal length swap wholesale.
	i := rng.Intn(n - 2*segLen + 1)
	j := i + segLen + rng.Intn(n-i-2*segLen+1)
	for k := 0; k < segLen; k++ {
		perm[i+k], perm[j+k] = perm[j+k], perm[i+k]
	}
}

func mutateRelocate(rng *rand.Rand, perm []int) {
	n := len(perm)
	if n < 2 {
		return
	}
	from := rng.Intn(n)
	to := rng.Intn(n)
	gene := perm[from]
	perm = append(perm[:from], perm[from+1:]...)
	perm = append(perm, 0)
	copy(perm[to+1:], perm[to:n-1])
	perm[to] = gene
}
