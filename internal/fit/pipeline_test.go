package fit

import (
	"testing"

	"github.com/cwbudde/grnfit/internal/model"
)

// fixedOptimizer returns a canned solution, for exercising the pipeline
// without a real search.
type fixedOptimizer struct {
	params []float64
	cost   float64
}

func (f *fixedOptimizer) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	if f.params != nil {
		return f.params, f.cost
	}
	v := make([]float64, dim)
	for i := range v {
		v[i] = (lower[i] + upper[i]) / 2
	}
	return v, eval(v)
}

func TestRemoveWeakestReaction(t *testing.T) {
	mask := fullMask(t, 2) // 4 reactions
	params := []float64{1, 2, 3, 4, 5, -0.1, 2, -3}

	next, reduced, err := RemoveWeakestReaction(params, mask)
	if err != nil {
		t.Fatalf("Failed to remove reaction: %v", err)
	}

	if reduced.Count() != 3 {
		t.Errorf("Expected 3 reactions left, got %d", reduced.Count())
	}
	if reduced.Active(0, 1) {
		t.Error("Expected reaction (0,1) pruned as weakest")
	}

	want := []float64{1, 2, 3, 4, 5, 2, -3}
	if len(next) != len(want) {
		t.Fatalf("Expected spliced vector of length %d, got %d", len(want), len(next))
	}
	for i := range want {
		if next[i] != want[i] {
			t.Errorf("Expected spliced vector %v, got %v", want, next)
			break
		}
	}

	// Inputs stay untouched.
	if mask.Count() != 4 || params[5] != -0.1 {
		t.Error("Expected original mask and params unchanged")
	}
}

func TestRemoveWeakestReactionErrors(t *testing.T) {
	empty, err := model.NewMask(2, make([]bool, 4))
	if err != nil {
		t.Fatalf("Failed to create mask: %v", err)
	}
	if _, _, err := RemoveWeakestReaction([]float64{1, 2, 3, 4}, empty); err == nil {
		t.Error("Expected error for empty mask")
	}

	mask := fullMask(t, 2)
	if _, _, err := RemoveWeakestReaction([]float64{1, 2}, mask); err == nil {
		t.Error("Expected error for wrong vector length")
	}
}

func TestOptimizeOnceReportsCosts(t *testing.T) {
	p := perturbOnlyProblem(t)
	defer p.Close()

	best := []float64{1, 2, 3, 4, 0.5, -0.5, 0.25, -0.25}
	result := OptimizeOnce(p, &fixedOptimizer{params: best, cost: p.Evaluate(best)})

	if result.BestCost != p.Evaluate(best) {
		t.Errorf("Expected best cost %g, got %g", p.Evaluate(best), result.BestCost)
	}
	if result.InitialCost != p.Evaluate(make([]float64, p.Dim())) {
		t.Errorf("Expected initial cost of the zero vector, got %g", result.InitialCost)
	}
}

func TestOptimizeReducePrunesToEmpty(t *testing.T) {
	cfg := Config{
		Mask:          fullMask(t, 2),
		Y0:            []float64{1, 1},
		Perturbations: perturbSet(t, 2, []float64{1, 1}, []float64{0, 1}),
	}

	steps, err := OptimizeReduce(cfg, &fixedOptimizer{}, 0)
	if err != nil {
		t.Fatalf("OptimizeReduce failed: %v", err)
	}

	// 4 reactions prune one per round down to a single-reaction model.
	if len(steps) != 4 {
		t.Fatalf("Expected 4 rounds, got %d", len(steps))
	}
	for i, step := range steps {
		if step.Mask.Count() != 4-i {
			t.Errorf("Expected round %d to run on %d reactions, got %d", i, 4-i, step.Mask.Count())
		}
		if step.Result == nil {
			t.Fatalf("Expected a result for round %d", i)
		}
	}
}

func TestOptimizeReduceHonorsMaxRounds(t *testing.T) {
	cfg := Config{
		Mask:          fullMask(t, 2),
		Y0:            []float64{1, 1},
		Perturbations: perturbSet(t, 2, []float64{1, 1}, []float64{0, 1}),
	}

	steps, err := OptimizeReduce(cfg, &fixedOptimizer{}, 2)
	if err != nil {
		t.Fatalf("OptimizeReduce failed: %v", err)
	}
	if len(steps) != 2 {
		t.Errorf("Expected 2 rounds, got %d", len(steps))
	}
}
