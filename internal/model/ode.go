package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// System is the regulatory right-hand side: each node decays linearly and
// is produced through a logistic term driven by the weighted sum of its
// regulators,
//
//	dx_i/dt = -lambda_i*x_i + vmax_i / (1 + exp(-sum_j K_ij*x_j))
//
// The system is autonomous; t is accepted only to satisfy the integrator
// signature. Lambda, Vmax and K are shared by reference for the duration
// of one cost evaluation and are never mutated here. The internal buffers
// make repeated derivative calls allocation-free, so a System must not be
// shared between goroutines.
type System struct {
	Lambda []float64
	Vmax   []float64
	K      *mat.Dense

	state *mat.VecDense
	sum   *mat.VecDense
}

// NewSystem binds the decoded parameters to a reusable derivative
// evaluator for an n-node network.
func NewSystem(lambda, vmax []float64, k *mat.Dense) *System {
	n := len(lambda)
	return &System{
		Lambda: lambda,
		Vmax:   vmax,
		K:      k,
		state:  mat.NewVecDense(n, nil),
		sum:    mat.NewVecDense(n, nil),
	}
}

// Derivative writes dx/dt for the current state y into dy. When the
// weighted regulator sum is strongly negative the exponential overflows to
// +Inf and the production term silently becomes zero; that is the intended
// saturation behaviour, not an error.
func (s *System) Derivative(t float64, y, dy []float64) {
	_ = t

	n := len(s.Lambda)
	for i := 0; i < n; i++ {
		s.state.SetVec(i, y[i])
	}
	s.sum.MulVec(s.K, s.state)

	for i := 0; i < n; i++ {
		production := s.Vmax[i] / (1 + math.Exp(-s.sum.AtVec(i)))
		dy[i] = -s.Lambda[i]*y[i] + production
	}
}
