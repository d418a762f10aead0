package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/grnfit/internal/model"
	"github.com/cwbudde/grnfit/internal/ode"
)

// integrateFunc is the solver entry point used by the evaluators. It is a
// field rather than a direct call so tests can instrument or count
// integrations.
type integrateFunc func(f ode.Func, y0, t []float64, cfg ode.Config) (*mat.Dense, ode.Statistics)

// ratioClip bounds how far a single ratio residual can pull the
// regression; near-zero control values blow the ratio up and would
// otherwise dominate the cost.
const ratioClip = 2.0

// PerturbEvaluator scores how well a candidate parameter vector
// reproduces the measured perturbation responses (sequential variant).
//
// Per perturbed factor i it integrates a control (baseline) trajectory
// with the unperturbed vector, memoised per call in a cache keyed by the
// factor's exact time sequence, then a perturbed trajectory with entry i
// of the vector scaled by 1+magnitude, and records the final-time-point
// ratio per node. After the loop the ratios minus one, clipped at
// ratioClip, are regressed against the flattened measured magnitudes and
// the least-squares residual sum is the cost.
//
// With Compound set, factor i's scaling is applied to the already-mutated
// working vector, so perturbations compose multiplicatively across the
// loop. The default is independent per-factor perturbation, which is the
// mode the parallel evaluator can reproduce. The baseline is always the
// unperturbed candidate vector.
//
// A PerturbEvaluator owns no shared mutable state between calls; distinct
// instances may evaluate concurrently.
type PerturbEvaluator struct {
	n        int
	mask     *model.Mask
	y0       []float64
	set      *PerturbationSet
	cfg      ode.Config
	Compound bool

	integrate integrateFunc
}

// NewPerturbEvaluator wires the evaluator. All shape mismatches are fatal
// configuration errors.
func NewPerturbEvaluator(mask *model.Mask, y0 []float64, set *PerturbationSet, cfg ode.Config) (*PerturbEvaluator, error) {
	if mask == nil {
		return nil, fmt.Errorf("interaction mask is required")
	}
	if len(y0) != mask.N() {
		return nil, fmt.Errorf("y0 has %d entries, mask expects %d nodes", len(y0), mask.N())
	}
	if set == nil {
		return nil, fmt.Errorf("perturbation set is required")
	}
	if set.K() != mask.N() {
		return nil, fmt.Errorf("perturbation set covers %d factors, mask has %d nodes", set.K(), mask.N())
	}
	return &PerturbEvaluator{
		n:         mask.N(),
		mask:      mask,
		y0:        y0,
		set:       set,
		cfg:       cfg,
		integrate: ode.Integrate,
	}, nil
}

// Cost evaluates one candidate vector. The vector is never mutated; all
// scratch state (interaction matrix, working copies, baseline cache) is
// local to this call.
func (e *PerturbEvaluator) Cost(params []float64) float64 {
	k := e.set.K()
	scratch := mat.NewDense(e.n, e.n, nil)
	cache := make(map[string]*mat.Dense, k)

	work := make([]float64, len(params))
	copy(work, params)

	ratios := make([]float64, 0, k*e.n)
	for i := 0; i < k; i++ {
		times := e.set.Times(i)

		key := timeKey(times)
		ctrl, ok := cache[key]
		if !ok {
			ctrl = e.simulate(params, times, scratch)
			cache[key] = ctrl
		}

		var perturbed []float64
		if e.Compound {
			work[i] *= 1 + e.set.Magnitude(i)
			perturbed = work
		} else {
			perturbed = make([]float64, len(params))
			copy(perturbed, params)
			perturbed[i] *= 1 + e.set.Magnitude(i)
		}

		traj := e.simulate(perturbed, times, scratch)

		last := len(times) - 1
		for j := 0; j < e.n; j++ {
			// A zero control value yields an infinite or undefined
			// ratio; that is a large-cost signal, not an error.
			ratios = append(ratios, traj.At(last, j)/ctrl.At(last, j))
		}
	}

	return reduceRatios(ratios, e.set.FlatMagnitudes())
}

// simulate decodes the vector into the regulatory system and integrates
// it over the given time sequence. The scratch matrix is caller-owned and
// fully rewritten by the codec, so reuse across calls is safe.
func (e *PerturbEvaluator) simulate(v []float64, times []float64, scratch *mat.Dense) *mat.Dense {
	pv, err := model.Wrap(v, e.n, e.mask.Count())
	if err != nil {
		// Construction validated the dimension; reaching this means the
		// problem boundary was bypassed.
		panic(err)
	}
	e.mask.Apply(scratch, pv.Strengths())
	sys := model.NewSystem(pv.Lambda(), pv.Vmax(), scratch)
	traj, _ := e.integrate(sys.Derivative, e.y0, times, e.cfg)
	return traj
}

// reduceRatios turns the collected trajectory ratios into the scalar
// cost: subtract one so a perfect match is zero, cap outliers at
// ratioClip, then solve the one-column least-squares problem mapping the
// residuals onto the measured magnitudes and return the residual sum.
// Non-finite residuals (from degenerate control trajectories) are capped
// like any other outlier so the optimizer always receives a finite value.
func reduceRatios(ratios, magnitudes []float64) float64 {
	a := make([]float64, len(ratios))
	for i, r := range ratios {
		v := r - 1
		if math.IsNaN(v) || v > ratioClip {
			v = ratioClip
		} else if math.IsInf(v, -1) {
			v = -ratioClip
		}
		a[i] = v
	}

	den := floats.Dot(a, a)
	coeff := 0.0
	if den > 0 {
		// Near-singular systems fall through with coeff 0 and the raw
		// magnitude norm as cost; the optimizer keeps exploring.
		coeff = floats.Dot(a, magnitudes) / den
	}

	cost := 0.0
	for i := range a {
		r := magnitudes[i] - coeff*a[i]
		cost += r * r
	}
	return cost
}
