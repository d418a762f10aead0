package fit

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/grnfit/internal/model"
	"github.com/cwbudde/grnfit/internal/opt"
)

// OptimizationResult holds the output of one optimization run.
type OptimizationResult struct {
	BestParams  []float64
	BestCost    float64
	InitialCost float64
}

// OptimizeOnce runs the optimizer against the problem once.
func OptimizeOnce(p *Problem, optimizer opt.Optimizer) *OptimizationResult {
	slog.Info("Starting optimization", "dim", p.Dim(), "nodes", p.N(), "reactions", p.M())

	lower, upper := p.Bounds()

	// Reference cost: the zero vector (no decay, no production).
	initialCost := p.Evaluate(make([]float64, p.Dim()))

	bestParams, bestCost := optimizer.Run(p.CostFunc(), lower, upper, p.Dim())

	slog.Info("Optimization complete", "initial_cost", initialCost, "best_cost", bestCost)

	return &OptimizationResult{
		BestParams:  bestParams,
		BestCost:    bestCost,
		InitialCost: initialCost,
	}
}

// RemoveWeakestReaction drops the reaction whose fitted strength has the
// smallest absolute value, returning the shrunken parameter vector and
// mask. The input vector and mask are not modified.
func RemoveWeakestReaction(params []float64, mask *model.Mask) ([]float64, *model.Mask, error) {
	n := mask.N()
	m := mask.Count()
	if m == 0 {
		return nil, nil, fmt.Errorf("mask has no reactions left")
	}
	if len(params) != model.Dim(n, m) {
		return nil, nil, fmt.Errorf("parameter vector length %d, want %d", len(params), model.Dim(n, m))
	}

	strengths := params[2*n:]
	weakest := 0
	for i, k := range strengths {
		if math.Abs(k) < math.Abs(strengths[weakest]) {
			weakest = i
		}
	}

	reduced, err := mask.Without(weakest)
	if err != nil {
		return nil, nil, err
	}

	next := make([]float64, 0, len(params)-1)
	next = append(next, params[:2*n+weakest]...)
	next = append(next, params[2*n+weakest+1:]...)

	slog.Info("Removed weakest reaction", "ordinal", weakest, "strength", strengths[weakest], "remaining", reduced.Count())
	return next, reduced, nil
}

// ReductionStep pairs one optimization round with the mask it ran on.
type ReductionStep struct {
	Mask   *model.Mask
	Result *OptimizationResult
}

// OptimizeReduce runs the optimizer, prunes the weakest reaction, and
// repeats until no reactions remain or maxRounds is exhausted. Each
// round rebuilds the problem from the shrunken mask; the template config
// supplies everything else.
func OptimizeReduce(cfg Config, optimizer opt.Optimizer, maxRounds int) ([]ReductionStep, error) {
	mask := cfg.Mask
	steps := []ReductionStep{}

	for round := 0; ; round++ {
		if maxRounds > 0 && round >= maxRounds {
			break
		}

		roundCfg := cfg
		roundCfg.Mask = mask
		p, err := NewProblem(roundCfg)
		if err != nil {
			return steps, fmt.Errorf("round %d: %w", round, err)
		}

		result := OptimizeOnce(p, optimizer)
		p.Close()
		steps = append(steps, ReductionStep{Mask: mask, Result: result})

		if mask.Count() == 0 {
			break
		}
		_, reduced, err := RemoveWeakestReaction(result.BestParams, mask)
		if err != nil {
			return steps, fmt.Errorf("round %d: %w", round, err)
		}
		mask = reduced
		if mask.Count() == 0 {
			break
		}
	}
	return steps, nil
}
