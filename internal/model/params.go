package model

import (
	"fmt"
	"math"
)

// Default parameter bounds, matching the reference toolbox: decay rates
// and saturation maxima live in [0, 20], reaction strengths in [-20, 20].
const (
	RateLower     = 0.0
	RateUpper     = 20.0
	StrengthLower = -20.0
	StrengthUpper = 20.0
)

// ParamVector is the flat encoding of one candidate model: n decay rates
// (lambda), n saturation maxima (vmax), then m reaction strengths in mask
// order. Dim = 2n + m.
type ParamVector struct {
	Data []float64
	N    int // network nodes
	M    int // allowed reactions
}

// Dim returns the parameter-vector length for n nodes and m reactions.
func Dim(n, m int) int { return 2*n + m }

// NewParamVector allocates a zero vector for n nodes and m reactions.
func NewParamVector(n, m int) *ParamVector {
	return &ParamVector{
		Data: make([]float64, Dim(n, m)),
		N:    n,
		M:    m,
	}
}

// Wrap views an existing slice as a ParamVector without copying.
func Wrap(data []float64, n, m int) (*ParamVector, error) {
	if len(data) != Dim(n, m) {
		return nil, fmt.Errorf("parameter vector length %d, want %d for n=%d m=%d", len(data), Dim(n, m), n, m)
	}
	return &ParamVector{Data: data, N: n, M: m}, nil
}

// Lambda returns the decay-rate segment.
func (pv *ParamVector) Lambda() []float64 { return pv.Data[:pv.N] }

// Vmax returns the saturation-maximum segment.
func (pv *ParamVector) Vmax() []float64 { return pv.Data[pv.N : 2*pv.N] }

// Strengths returns the reaction-strength segment.
func (pv *ParamVector) Strengths() []float64 { return pv.Data[2*pv.N:] }

// Clone returns a deep copy. Evaluations that mutate a vector must work
// on a clone; the original is owned by the caller.
func (pv *ParamVector) Clone() *ParamVector {
	data := make([]float64, len(pv.Data))
	copy(data, pv.Data)
	return &ParamVector{Data: data, N: pv.N, M: pv.M}
}

// Bounds defines the valid range per parameter dimension.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// NewBounds creates the default bounds for n nodes and m reactions.
func NewBounds(n, m int) *Bounds {
	dim := Dim(n, m)
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := 0; i < 2*n; i++ {
		lower[i] = RateLower
		upper[i] = RateUpper
	}
	for i := 2 * n; i < dim; i++ {
		lower[i] = StrengthLower
		upper[i] = StrengthUpper
	}
	return &Bounds{Lower: lower, Upper: upper}
}

// Contains reports whether every entry of data lies within the bounds.
func (b *Bounds) Contains(data []float64) bool {
	for i, v := range data {
		if v < b.Lower[i] || v > b.Upper[i] {
			return false
		}
	}
	return true
}

// ClampVector clamps all parameters in place.
func (b *Bounds) ClampVector(data []float64) {
	for i := range data {
		data[i] = clamp(data[i], b.Lower[i], b.Upper[i])
	}
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}
