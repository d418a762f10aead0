package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Mask marks which entries of the n×n interaction matrix are allowed
// reactions. It is built once per model and shared read-only across all
// evaluations; only the scratch matrices it is applied to are mutable.
type Mask struct {
	n     int
	on    []bool
	count int
}

// NewMask creates a Mask from a row-major n*n boolean slice. Entry (i, j)
// marks node j as a regulator of node i.
func NewMask(n int, on []bool) (*Mask, error) {
	if n <= 0 {
		return nil, fmt.Errorf("mask size must be positive, got %d", n)
	}
	if len(on) != n*n {
		return nil, fmt.Errorf("mask length %d does not match %d nodes (want %d)", len(on), n, n*n)
	}
	count := 0
	copied := make([]bool, len(on))
	copy(copied, on)
	for _, active := range copied {
		if active {
			count++
		}
	}
	return &Mask{n: n, on: copied, count: count}, nil
}

// N returns the number of network nodes.
func (m *Mask) N() int { return m.n }

// Count returns the number of active reactions.
func (m *Mask) Count() int { return m.count }

// Active reports whether node j regulates node i.
func (m *Mask) Active(i, j int) bool { return m.on[i*m.n+j] }

// Without returns a copy of the mask with the ord-th active entry (in
// row-major order) cleared. Used when pruning the weakest reaction
// between optimization rounds.
func (m *Mask) Without(ord int) (*Mask, error) {
	if ord < 0 || ord >= m.count {
		return nil, fmt.Errorf("reaction ordinal %d out of range (mask has %d active entries)", ord, m.count)
	}
	on := make([]bool, len(m.on))
	copy(on, m.on)
	seen := 0
	for i, active := range on {
		if !active {
			continue
		}
		if seen == ord {
			on[i] = false
			break
		}
		seen++
	}
	return NewMask(m.n, on)
}

// Apply writes the reaction strengths into the masked positions of the
// caller-owned scratch matrix, in row-major mask order. The matrix is
// zeroed first, so repeated applications over the same scratch never leak
// values from a previous decision vector.
//
// The strengths length must equal Count; a mismatch is a configuration
// error that callers are expected to have rejected at construction time,
// so it panics here.
func (m *Mask) Apply(dst *mat.Dense, strengths []float64) {
	if len(strengths) != m.count {
		panic(fmt.Sprintf("model: %d reaction strengths for mask with %d active entries", len(strengths), m.count))
	}
	r, c := dst.Dims()
	if r != m.n || c != m.n {
		panic(fmt.Sprintf("model: scratch matrix is %dx%d, mask wants %dx%d", r, c, m.n, m.n))
	}

	dst.Zero()
	next := 0
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if m.on[i*m.n+j] {
				dst.Set(i, j, strengths[next])
				next++
			}
		}
	}
}
