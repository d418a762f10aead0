package fit

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/grnfit/internal/model"
	"github.com/cwbudde/grnfit/internal/ode"
)

// TimeSeriesEvaluator scores a candidate vector against the measured
// unperturbed expression course: integrate from y0 over the data time
// sequence, normalise each node's trajectory by its own maximum, and sum
// the squared deviations weighted by the per-node variance.
type TimeSeriesEvaluator struct {
	n      int
	mask   *model.Mask
	y0     []float64
	series *TimeSeries
	sigma2 []float64
	cfg    ode.Config

	integrate integrateFunc
}

// NewTimeSeriesEvaluator validates shapes and precomputes the variance
// weights. A zero standard deviation would make the weight infinite, so
// those nodes carry unit weight instead.
func NewTimeSeriesEvaluator(mask *model.Mask, y0 []float64, series *TimeSeries, cfg ode.Config) (*TimeSeriesEvaluator, error) {
	if mask == nil {
		return nil, fmt.Errorf("interaction mask is required")
	}
	if len(y0) != mask.N() {
		return nil, fmt.Errorf("y0 has %d entries, mask expects %d nodes", len(y0), mask.N())
	}
	if series == nil {
		return nil, fmt.Errorf("time series is required")
	}
	if err := series.Validate(mask.N()); err != nil {
		return nil, err
	}

	sigma2 := make([]float64, mask.N())
	for i, s := range series.Sigma {
		if s == 0 {
			sigma2[i] = 1
		} else {
			sigma2[i] = s * s
		}
	}

	return &TimeSeriesEvaluator{
		n:         mask.N(),
		mask:      mask,
		y0:        y0,
		series:    series,
		sigma2:    sigma2,
		cfg:       cfg,
		integrate: ode.Integrate,
	}, nil
}

// Cost evaluates one candidate vector without mutating it.
func (e *TimeSeriesEvaluator) Cost(params []float64) float64 {
	pv, err := model.Wrap(params, e.n, e.mask.Count())
	if err != nil {
		panic(err)
	}

	scratch := mat.NewDense(e.n, e.n, nil)
	e.mask.Apply(scratch, pv.Strengths())
	sys := model.NewSystem(pv.Lambda(), pv.Vmax(), scratch)
	traj, _ := e.integrate(sys.Derivative, e.y0, e.series.Times, e.cfg)

	rows, _ := e.series.Data.Dims()

	cost := 0.0
	for j := 0; j < e.n; j++ {
		peak := 0.0
		for i := 0; i < rows; i++ {
			if v := traj.At(i, j); v > peak {
				peak = v
			}
		}
		if peak == 0 {
			peak = 1
		}
		for i := 0; i < rows; i++ {
			d := e.series.Data.At(i, j) - traj.At(i, j)/peak
			cost += d * d / e.sigma2[j]
		}
	}
	return cost
}
