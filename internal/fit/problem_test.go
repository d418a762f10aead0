package fit

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/grnfit/internal/model"
)

func basicSeries(t *testing.T, n int) *TimeSeries {
	t.Helper()
	data := mat.NewDense(2, n, nil)
	for j := 0; j < n; j++ {
		data.Set(0, j, 1)
		data.Set(1, j, 0.5)
	}
	sigma := make([]float64, n)
	for j := range sigma {
		sigma[j] = 1
	}
	return &TimeSeries{Data: data, Sigma: sigma, Times: []float64{0, 1}}
}

func TestNewProblemValidation(t *testing.T) {
	mask := fullMask(t, 2)
	y0 := []float64{1, 1}
	set := perturbSet(t, 2, []float64{1, 1}, []float64{0, 1})

	if _, err := NewProblem(Config{Y0: y0, Perturbations: set}); err == nil {
		t.Error("Expected error for missing mask")
	}
	if _, err := NewProblem(Config{Mask: mask, Y0: []float64{1}, Perturbations: set}); err == nil {
		t.Error("Expected error for y0 length mismatch")
	}
	if _, err := NewProblem(Config{Mask: mask, Y0: y0}); err == nil {
		t.Error("Expected error when both datasets are missing")
	}
	if _, err := NewProblem(Config{Mask: mask, Y0: y0, Perturbations: set, Compound: true, Workers: 2}); err == nil {
		t.Error("Expected error for compound + parallel")
	}
}

func TestProblemDimensions(t *testing.T) {
	mask := fullMask(t, 2)
	p, err := NewProblem(Config{
		Mask:          mask,
		Y0:            []float64{1, 1},
		Perturbations: perturbSet(t, 2, []float64{1, 1}, []float64{0, 1}),
	})
	if err != nil {
		t.Fatalf("Failed to create problem: %v", err)
	}
	defer p.Close()

	if p.N() != 2 || p.M() != 4 || p.Dim() != 8 {
		t.Errorf("Expected n=2 m=4 dim=8, got n=%d m=%d dim=%d", p.N(), p.M(), p.Dim())
	}

	lower, upper := p.Bounds()
	if len(lower) != 8 || len(upper) != 8 {
		t.Fatalf("Expected bounds of length 8, got %d and %d", len(lower), len(upper))
	}
	if lower[0] != model.RateLower || upper[0] != model.RateUpper {
		t.Errorf("Expected rate bounds for dimension 0, got [%g, %g]", lower[0], upper[0])
	}
	if lower[4] != model.StrengthLower || upper[4] != model.StrengthUpper {
		t.Errorf("Expected strength bounds for dimension 4, got [%g, %g]", lower[4], upper[4])
	}

	// Returned bounds are copies.
	lower[0] = -99
	fresh, _ := p.Bounds()
	if fresh[0] == -99 {
		t.Error("Expected Bounds to return copies")
	}
}

func TestEvaluateWrongLengthIsInf(t *testing.T) {
	p := perturbOnlyProblem(t)
	defer p.Close()

	if cost := p.Evaluate(make([]float64, 3)); !math.IsInf(cost, 1) {
		t.Errorf("Expected +Inf for wrong-length vector, got %g", cost)
	}
}

func TestEvaluateBoundsReject(t *testing.T) {
	mask := fullMask(t, 2)
	p, err := NewProblem(Config{
		Mask:          mask,
		Y0:            []float64{1, 1},
		Perturbations: perturbSet(t, 2, []float64{1, 1}, []float64{0, 1}),
		OnOutOfBounds: BoundsReject,
	})
	if err != nil {
		t.Fatalf("Failed to create problem: %v", err)
	}
	defer p.Close()

	bad := make([]float64, p.Dim())
	bad[0] = -1
	if cost := p.Evaluate(bad); !math.IsInf(cost, 1) {
		t.Errorf("Expected +Inf under BoundsReject, got %g", cost)
	}
}

func TestEvaluateBoundsClamp(t *testing.T) {
	p := perturbOnlyProblem(t)
	defer p.Close()

	inside := []float64{1, 2, 3, 4, 0.5, -0.5, 0.25, -0.25}
	outside := append([]float64(nil), inside...)
	outside[0] = -7 // clamps to 0

	clamped := append([]float64(nil), inside...)
	clamped[0] = 0

	if got, want := p.Evaluate(outside), p.Evaluate(clamped); got != want {
		t.Errorf("Expected clamped evaluation %g, got %g", want, got)
	}

	// The caller's vector stays untouched.
	if outside[0] != -7 {
		t.Errorf("Expected input vector untouched, got %g", outside[0])
	}
}

func TestEvaluateCombinesCosts(t *testing.T) {
	mask := fullMask(t, 2)
	series := basicSeries(t, 2)
	set := perturbSet(t, 2, []float64{1, 1}, []float64{0, 1})
	y0 := []float64{1, 1}

	both, err := NewProblem(Config{Mask: mask, Y0: y0, Series: series, Perturbations: set, PertFactor: 2})
	if err != nil {
		t.Fatalf("Failed to create combined problem: %v", err)
	}
	defer both.Close()

	seriesOnly, err := NewProblem(Config{Mask: mask, Y0: y0, Series: series})
	if err != nil {
		t.Fatalf("Failed to create series problem: %v", err)
	}
	defer seriesOnly.Close()

	perturbOnly, err := NewProblem(Config{Mask: mask, Y0: y0, Perturbations: set})
	if err != nil {
		t.Fatalf("Failed to create perturbation problem: %v", err)
	}
	defer perturbOnly.Close()

	v := []float64{1, 2, 3, 4, 0.5, -0.5, 0.25, -0.25}
	want := seriesOnly.Evaluate(v) + 2*perturbOnly.Evaluate(v)
	got := both.Evaluate(v)

	if math.Abs(got-want) > 1e-12*(1+math.Abs(want)) {
		t.Errorf("Expected combined cost %g, got %g", want, got)
	}
}

func TestEvaluateIsFiniteAndNonNegative(t *testing.T) {
	p := perturbOnlyProblem(t)
	defer p.Close()

	v := []float64{0.5, 1.5, 3, 4, 0.1, -0.2, 0.3, -0.4}
	cost := p.Evaluate(v)
	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost < 0 {
		t.Errorf("Expected finite non-negative cost, got %g", cost)
	}

	if fn := p.CostFunc(); fn(v) != cost {
		t.Error("Expected CostFunc to match Evaluate")
	}
}

func perturbOnlyProblem(t *testing.T) *Problem {
	t.Helper()
	p, err := NewProblem(Config{
		Mask:          fullMask(t, 2),
		Y0:            []float64{1, 1},
		Perturbations: perturbSet(t, 2, []float64{1, 1}, []float64{0, 1}),
	})
	if err != nil {
		t.Fatalf("Failed to create problem: %v", err)
	}
	return p
}
