package fit

import (
	"fmt"
	"math"

	"github.com/cwbudde/grnfit/internal/model"
	"github.com/cwbudde/grnfit/internal/ode"
)

// BoundsPolicy decides what Evaluate does with an out-of-bounds vector.
type BoundsPolicy int

const (
	// BoundsClamp clamps the vector into range before evaluating.
	BoundsClamp BoundsPolicy = iota
	// BoundsReject returns +Inf as the constraint-violation signal.
	BoundsReject
)

// Config assembles a Problem. Mask and Y0 are required; at least one of
// Series and Perturbations must be present.
type Config struct {
	Mask          *model.Mask
	Y0            []float64
	Series        *TimeSeries
	Perturbations *PerturbationSet

	// PertFactor scales the perturbation cost against the time-series
	// cost. Zero means 1.
	PertFactor float64

	// Integrator tunes the ODE solver shared by all evaluations.
	Integrator ode.Config

	// Compound switches the sequential evaluator to compounding
	// perturbation semantics. Incompatible with Workers > 0.
	Compound bool

	// Workers > 0 evaluates the perturbation cost on a worker pool of
	// that size (independent per-factor semantics).
	Workers int

	// OnOutOfBounds selects the bounds policy; default BoundsClamp.
	OnOutOfBounds BoundsPolicy
}

// costFunc is the shared shape of the evaluators behind a Problem.
type costFunc interface {
	Cost(params []float64) float64
}

// Problem is the boundary the external optimizer consumes: a fixed
// dimensionality, per-dimension bounds, and a scalar cost per candidate
// vector. Evaluate is safe under arbitrary call order and repetition and
// leaks no state between calls.
type Problem struct {
	n, m, dim int
	bounds    *model.Bounds
	policy    BoundsPolicy

	series     costFunc
	perturb    costFunc
	pertFactor float64

	pool *Pool
}

// NewProblem validates the configuration and wires the evaluators. Every
// configuration error (mask/vector-length mismatch, malformed dataset
// shapes, missing y0) is fatal here rather than at evaluation time.
func NewProblem(cfg Config) (*Problem, error) {
	if cfg.Mask == nil {
		return nil, fmt.Errorf("interaction mask is required")
	}
	n := cfg.Mask.N()
	m := cfg.Mask.Count()
	if len(cfg.Y0) != n {
		return nil, fmt.Errorf("y0 has %d entries, mask expects %d nodes", len(cfg.Y0), n)
	}
	if cfg.Series == nil && cfg.Perturbations == nil {
		return nil, fmt.Errorf("at least one of time-series data and perturbation data is required")
	}
	if cfg.Compound && cfg.Workers > 0 {
		return nil, fmt.Errorf("compounding perturbations cannot be evaluated in parallel")
	}

	p := &Problem{
		n:          n,
		m:          m,
		dim:        model.Dim(n, m),
		bounds:     model.NewBounds(n, m),
		policy:     cfg.OnOutOfBounds,
		pertFactor: cfg.PertFactor,
	}
	if p.pertFactor == 0 {
		p.pertFactor = 1
	}

	if cfg.Series != nil {
		eval, err := NewTimeSeriesEvaluator(cfg.Mask, cfg.Y0, cfg.Series, cfg.Integrator)
		if err != nil {
			return nil, fmt.Errorf("time-series data: %w", err)
		}
		p.series = eval
	}

	if cfg.Perturbations != nil {
		if cfg.Workers > 0 {
			p.pool = NewPool(cfg.Workers)
			eval, err := NewParallelPerturbEvaluator(cfg.Mask, cfg.Y0, cfg.Perturbations, cfg.Integrator, p.pool)
			if err != nil {
				p.pool.Close()
				return nil, fmt.Errorf("perturbation data: %w", err)
			}
			p.perturb = eval
		} else {
			eval, err := NewPerturbEvaluator(cfg.Mask, cfg.Y0, cfg.Perturbations, cfg.Integrator)
			if err != nil {
				return nil, fmt.Errorf("perturbation data: %w", err)
			}
			eval.Compound = cfg.Compound
			p.perturb = eval
		}
	}

	return p, nil
}

// Dim returns the parameter-space dimensionality 2n+m.
func (p *Problem) Dim() int { return p.dim }

// N returns the node count, M the allowed-reaction count.
func (p *Problem) N() int { return p.n }
func (p *Problem) M() int { return p.m }

// Bounds returns copies of the per-dimension lower and upper bounds.
func (p *Problem) Bounds() (lower, upper []float64) {
	lower = make([]float64, p.dim)
	upper = make([]float64, p.dim)
	copy(lower, p.bounds.Lower)
	copy(upper, p.bounds.Upper)
	return lower, upper
}

// Evaluate returns the scalar cost for one candidate vector; lower is
// better. Deterministic inputs give bit-identical costs. A wrong-length
// or (under BoundsReject) out-of-bounds vector yields +Inf.
func (p *Problem) Evaluate(params []float64) float64 {
	if len(params) != p.dim {
		return math.Inf(1)
	}

	v := params
	if !p.bounds.Contains(params) {
		if p.policy == BoundsReject {
			return math.Inf(1)
		}
		clamped := make([]float64, p.dim)
		copy(clamped, params)
		p.bounds.ClampVector(clamped)
		v = clamped
	}

	cost := 0.0
	if p.series != nil {
		cost += p.series.Cost(v)
	}
	if p.perturb != nil {
		cost += p.pertFactor * p.perturb.Cost(v)
	}
	return cost
}

// CostFunc adapts Evaluate to the optimizer's objective signature.
func (p *Problem) CostFunc() func([]float64) float64 { return p.Evaluate }

// Close releases the worker pool, if any. The Problem must not be
// evaluated afterwards.
func (p *Problem) Close() {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
}
