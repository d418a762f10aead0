// Package ode integrates initial-value problems over prescribed time
// sequences. The solver is an adaptive Cash-Karp Runge-Kutta 4(5) with a
// hard internal step ceiling: pathological parameter sets degrade into a
// best-effort trajectory instead of hanging or failing, and the caller's
// cost function is expected to penalise the poor output on its own.
package ode

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Func evaluates the right-hand side of y' = f(t, y), writing the
// derivative into dy.
type Func func(t float64, y, dy []float64)

// DefaultMaxSteps bounds the internal step count of one Integrate call.
const DefaultMaxSteps = 100_000_000

// Config controls step sizing and termination.
type Config struct {
	// InitialStep is the first attempted step size. If zero, a fraction
	// of the first output interval is used.
	InitialStep float64
	// MinStep is the smallest allowed step. Below it the step is forced
	// through accepted, trading accuracy for progress. If zero, a value
	// relative to the integration span is used.
	MinStep float64
	// AbsTol and RelTol weigh the local error estimate. Zero values
	// default to 1e-8 and 1e-6.
	AbsTol float64
	RelTol float64
	// MaxSteps caps the internal steps for the whole call. Zero means
	// DefaultMaxSteps.
	MaxSteps int
}

// Statistics reports what the solver actually did.
type Statistics struct {
	Steps       int
	Rejected    int
	Evaluations int
	LastStep    float64
	// CeilingHit is set when MaxSteps ran out; the remaining trajectory
	// rows are padded with the last reached state.
	CeilingHit bool
}

// Cash-Karp tableau.
var (
	ckA = [6]float64{0, 1.0 / 5, 3.0 / 10, 3.0 / 5, 1, 7.0 / 8}
	ckB = [6][5]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{3.0 / 10, -9.0 / 10, 6.0 / 5},
		{-11.0 / 54, 5.0 / 2, -70.0 / 27, 35.0 / 27},
		{1631.0 / 55296, 175.0 / 512, 575.0 / 13824, 44275.0 / 110592, 253.0 / 4096},
	}
	ckC  = [6]float64{37.0 / 378, 0, 250.0 / 621, 125.0 / 594, 0, 512.0 / 1771}
	ckDC = [6]float64{
		37.0/378 - 2825.0/27648,
		0,
		250.0/621 - 18575.0/48384,
		125.0/594 - 13525.0/55296,
		-277.0 / 14336,
		512.0/1771 - 1.0/4,
	}
)

// Integrate advances y0 over the ascending time sequence t and returns one
// trajectory row per requested time point as a len(t) x len(y0) matrix.
// Identical inputs always produce identical output. Integrate never
// returns an error: non-convergence surfaces as a padded trajectory with
// Statistics.CeilingHit set.
func Integrate(f Func, y0 []float64, t []float64, cfg Config) (*mat.Dense, Statistics) {
	n := len(y0)
	stats := Statistics{}
	if len(t) == 0 || n == 0 {
		return &mat.Dense{}, stats
	}
	out := mat.NewDense(len(t), n, nil)

	absTol := cfg.AbsTol
	if absTol <= 0 {
		absTol = 1e-8
	}
	relTol := cfg.RelTol
	if relTol <= 0 {
		relTol = 1e-6
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	span := t[len(t)-1] - t[0]
	minStep := cfg.MinStep
	if minStep <= 0 {
		minStep = math.Max(span*1e-14, 1e-300)
	}

	y := make([]float64, n)
	copy(y, y0)
	out.SetRow(0, y)

	// Per-call scratch, reused across every step.
	var (
		stages [6][]float64
		ytmp   = make([]float64, n)
		ynew   = make([]float64, n)
		yerr   = make([]float64, n)
	)
	for i := range stages {
		stages[i] = make([]float64, n)
	}

	h := cfg.InitialStep
	if h <= 0 {
		if span > 0 {
			h = (t[1] - t[0]) / 100
		} else {
			h = 1e-6
		}
	}

	cur := t[0]
	for row := 1; row < len(t); row++ {
		target := t[row]
		for cur < target {
			if stats.Steps >= maxSteps {
				stats.CeilingHit = true
				for r := row; r < len(t); r++ {
					out.SetRow(r, y)
				}
				return out, stats
			}
			hTry := h
			if cur+hTry > target {
				hTry = target - cur
			}

			errNorm := step(f, cur, hTry, y, ynew, yerr, ytmp, stages, absTol, relTol)
			stats.Steps++
			stats.Evaluations += 6

			if errNorm <= 1 || hTry <= minStep || math.IsNaN(errNorm) {
				// Accept. A NaN error estimate means the dynamics blew
				// up; keep stepping so the ceiling, not a hang, ends it.
				cur += hTry
				copy(y, ynew)
				stats.LastStep = hTry
				if errNorm > 0 && !math.IsNaN(errNorm) {
					h = hTry * math.Min(5, 0.9*math.Pow(errNorm, -0.2))
				} else {
					h = hTry * 5
				}
			} else {
				stats.Rejected++
				h = hTry * math.Max(0.1, 0.9*math.Pow(errNorm, -0.25))
			}
			if h < minStep {
				h = minStep
			}
		}
		out.SetRow(row, y)
	}
	return out, stats
}

// step performs one Cash-Karp stage evaluation, writing the candidate
// state into ynew and returning the scaled error norm.
func step(f Func, t, h float64, y, ynew, yerr, ytmp []float64, stages [6][]float64, absTol, relTol float64) float64 {
	n := len(y)

	f(t, y, stages[0])
	for s := 1; s < 6; s++ {
		for i := 0; i < n; i++ {
			acc := 0.0
			for p := 0; p < s; p++ {
				acc += ckB[s][p] * stages[p][i]
			}
			ytmp[i] = y[i] + h*acc
		}
		f(t+ckA[s]*h, ytmp, stages[s])
	}

	errNorm := 0.0
	for i := 0; i < n; i++ {
		var acc, errAcc float64
		for s := 0; s < 6; s++ {
			acc += ckC[s] * stages[s][i]
			errAcc += ckDC[s] * stages[s][i]
		}
		ynew[i] = y[i] + h*acc
		yerr[i] = h * errAcc

		scale := absTol + relTol*math.Max(math.Abs(y[i]), math.Abs(ynew[i]))
		e := yerr[i] / scale
		errNorm += e * e
	}
	return math.Sqrt(errNorm / float64(n))
}
