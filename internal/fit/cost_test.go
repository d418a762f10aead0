package fit

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/grnfit/internal/ode"
)

func stubTrajectory(values [][]float64) integrateFunc {
	return func(f ode.Func, y0, t []float64, cfg ode.Config) (*mat.Dense, ode.Statistics) {
		out := mat.NewDense(len(values), len(values[0]), nil)
		for i, row := range values {
			out.SetRow(i, row)
		}
		return out, ode.Statistics{}
	}
}

func TestNewTimeSeriesEvaluatorValidation(t *testing.T) {
	mask := fullMask(t, 2)
	series := basicSeries(t, 2)

	if _, err := NewTimeSeriesEvaluator(nil, []float64{1, 1}, series, ode.Config{}); err == nil {
		t.Error("Expected error for nil mask")
	}
	if _, err := NewTimeSeriesEvaluator(mask, []float64{1}, series, ode.Config{}); err == nil {
		t.Error("Expected error for y0 length mismatch")
	}
	if _, err := NewTimeSeriesEvaluator(mask, []float64{1, 1}, nil, ode.Config{}); err == nil {
		t.Error("Expected error for nil series")
	}

	bad := basicSeries(t, 3)
	if _, err := NewTimeSeriesEvaluator(mask, []float64{1, 1}, bad, ode.Config{}); err == nil {
		t.Error("Expected error for column count mismatch")
	}
}

func TestTimeSeriesCostPeakNormalization(t *testing.T) {
	// Trajectory [2, 1] normalizes to [1, 0.5], exactly the measured
	// course: zero cost.
	mask := fullMask(t, 1)
	series := &TimeSeries{
		Data:  mat.NewDense(2, 1, []float64{1, 0.5}),
		Sigma: []float64{1},
		Times: []float64{0, 1},
	}

	eval, err := NewTimeSeriesEvaluator(mask, []float64{1}, series, ode.Config{})
	if err != nil {
		t.Fatalf("Failed to create evaluator: %v", err)
	}
	eval.integrate = stubTrajectory([][]float64{{2}, {1}})

	if cost := eval.Cost([]float64{1, 1, 0}); cost != 0 {
		t.Errorf("Expected zero cost for shape-matched trajectory, got %g", cost)
	}
}

func TestTimeSeriesCostZeroPeakFallback(t *testing.T) {
	// An all-zero trajectory divides by the fallback peak 1: the cost is
	// the raw squared data norm.
	mask := fullMask(t, 1)
	series := &TimeSeries{
		Data:  mat.NewDense(2, 1, []float64{1, 0.5}),
		Sigma: []float64{1},
		Times: []float64{0, 1},
	}

	eval, err := NewTimeSeriesEvaluator(mask, []float64{1}, series, ode.Config{})
	if err != nil {
		t.Fatalf("Failed to create evaluator: %v", err)
	}
	eval.integrate = stubTrajectory([][]float64{{0}, {0}})

	want := 1.0 + 0.25
	if cost := eval.Cost([]float64{1, 1, 0}); math.Abs(cost-want) > 1e-12 {
		t.Errorf("Expected cost %g for zero trajectory, got %g", want, cost)
	}
}

func TestTimeSeriesCostSigmaWeighting(t *testing.T) {
	mask := fullMask(t, 1)
	times := []float64{0, 1}
	data := []float64{1, 0.5}

	weighted := &TimeSeries{
		Data:  mat.NewDense(2, 1, append([]float64(nil), data...)),
		Sigma: []float64{2},
		Times: times,
	}
	unit := &TimeSeries{
		Data:  mat.NewDense(2, 1, append([]float64(nil), data...)),
		Sigma: []float64{0}, // zero sigma falls back to unit weight
		Times: times,
	}

	traj := stubTrajectory([][]float64{{0}, {0}})

	we, err := NewTimeSeriesEvaluator(mask, []float64{1}, weighted, ode.Config{})
	if err != nil {
		t.Fatalf("Failed to create evaluator: %v", err)
	}
	we.integrate = traj

	ue, err := NewTimeSeriesEvaluator(mask, []float64{1}, unit, ode.Config{})
	if err != nil {
		t.Fatalf("Failed to create evaluator: %v", err)
	}
	ue.integrate = traj

	v := []float64{1, 1, 0}
	wc := we.Cost(v)
	uc := ue.Cost(v)

	if math.Abs(wc*4-uc) > 1e-12 {
		t.Errorf("Expected sigma=2 to scale cost by 1/4, got %g vs %g", wc, uc)
	}
}
