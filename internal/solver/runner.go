package solver

import (
	"context"
	"fmt"
	"log"
	"time"

	"fieldops-routing-service/internal/domain"
)

// Runner drives one optimization call end to end: derive features, pick a
// strategy, invoke it under the caller's timeout, and degrade to the greedy
// fallback when the pick fails or runs out of budget. A caller never receives
// "no answer" unless even greedy fails.
type Runner struct {
	registry *Registry
	selector *Selector
	fallback Solver
	// fallbackBudget bounds the additional delay after a strategy timeout.
	fallbackBudget time.Duration
}

func NewRunner(registry *Registry) *Runner {
	return &Runner{
		registry:       registry,
		selector:       NewSelector(),
		fallback:       NewGreedy(),
		fallbackBudget: 2 * time.Second,
	}
}

func (r *Runner) Solve(
	ctx context.Context,
	p *domain.RoutingProblem,
	timeout time.Duration,
) (*domain.SolutionResult, error) {
	features := Extract(p)
	decision := r.selector.Pick(features)

	strategy, ok := r.registry.Get(decision.Type)
	if !ok {
		strategy = r.fallback
		decision = Decision{Type: r.fallback.Type(), Reason: "strategy-unavailable"}
	}

	log.Printf(
		"solver pick strategy=%s reason=%s jobs=%d vehicles=%d tightness=%.2f spread_km=%.1f",
		decision.Type, decision.Reason, features.JobCount, features.VehicleCount,
		features.WindowTightness, features.SpreadKm,
	)

	result, err := r.run(ctx, strategy, p, timeout)
	if err == nil {
		return result, nil
	}
	if strategy.Type() == r.fallback.Type() {
		return nil, fmt.Errorf("solve: greedy strategy: %w", err)
	}

	log.Printf("solver fallback from=%s err=%v", strategy.Type(), err)

	// The fallback runs on a detached context: even if the caller's budget is
	// exhausted it still gets a best-effort answer within a bounded delay.
	fbCtx := context.WithoutCancel(ctx)
	result, fbErr := r.run(fbCtx, r.fallback, p, r.fallbackBudget)
	if fbErr != nil {
		return nil, fmt.Errorf("solve: %s failed (%v); greedy fallback: %w", strategy.Type(), err, fbErr)
	}
	return result, nil
}

// run invokes one strategy under a deadline. A strategy that overruns is
// abandoned: its goroutine exits on its own once the context is done and its
// late result, if any, is discarded.
func (r *Runner) run(
	ctx context.Context,
	s Solver,
	p *domain.RoutingProblem,
	timeout time.Duration,
) (*domain.SolutionResult, error) {
	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type outcome struct {
		result *domain.SolutionResult
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		result, err := s.Solve(runCtx, p)
		ch <- outcome{result: result, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			return nil, fmt.Errorf("strategy %s: %w", s.Type(), o.err)
		}
		return o.result, nil
	case <-runCtx.Done():
		return nil, fmt.Errorf("strategy %s: %w", s.Type(), runCtx.Err())
	}
}
