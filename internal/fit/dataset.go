package fit

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PerturbationSet holds the measured perturbation-response experiment for
// k perturbed factors. The raw table is k x (k + w): the first k columns
// are the perturbation multiplier magnitudes (the diagonal entry is the
// perturbation applied to that row's factor), the trailing w columns are
// the time sequence over which that factor's perturbed and control
// trajectories are compared. Immutable once constructed.
type PerturbationSet struct {
	k          int
	magnitudes *mat.Dense
	times      [][]float64
}

// NewPerturbationSet validates and splits a raw k x (k+w) table for an
// n-node network. Shape violations are configuration errors and abort
// construction; they are never deferred to evaluation time.
func NewPerturbationSet(raw *mat.Dense, n int) (*PerturbationSet, error) {
	rows, cols := raw.Dims()
	if rows != n {
		return nil, fmt.Errorf("perturbation table has %d rows, want one per node (%d)", rows, n)
	}
	w := cols - n
	if w < 2 {
		return nil, fmt.Errorf("perturbation table has %d time columns, want at least 2", w)
	}

	magnitudes := mat.NewDense(n, n, nil)
	times := make([][]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			magnitudes.Set(i, j, raw.At(i, j))
		}
		seq := make([]float64, w)
		for j := 0; j < w; j++ {
			seq[j] = raw.At(i, n+j)
		}
		for j := 1; j < w; j++ {
			if seq[j] <= seq[j-1] {
				return nil, fmt.Errorf("time sequence for factor %d is not ascending at position %d", i, j)
			}
		}
		times[i] = seq
	}

	return &PerturbationSet{k: n, magnitudes: magnitudes, times: times}, nil
}

// K returns the number of perturbed factors.
func (s *PerturbationSet) K() int { return s.k }

// Magnitude returns the perturbation multiplier magnitude applied to
// factor i (the diagonal entry of its row).
func (s *PerturbationSet) Magnitude(i int) float64 { return s.magnitudes.At(i, i) }

// Times returns factor i's comparison time sequence. Shared read-only.
func (s *PerturbationSet) Times(i int) []float64 { return s.times[i] }

// FlatMagnitudes returns the k*k magnitude block flattened row-major,
// the regression target for the residual reduction.
func (s *PerturbationSet) FlatMagnitudes() []float64 {
	flat := make([]float64, s.k*s.k)
	for i := 0; i < s.k; i++ {
		for j := 0; j < s.k; j++ {
			flat[i*s.k+j] = s.magnitudes.At(i, j)
		}
	}
	return flat
}

// TimeSeries holds the measured unperturbed expression data: one row per
// time point, one column per node, with a per-node standard deviation.
type TimeSeries struct {
	Data  *mat.Dense
	Sigma []float64
	Times []float64
}

// Validate checks the shapes against an n-node network.
func (ts *TimeSeries) Validate(n int) error {
	rows, cols := ts.Data.Dims()
	if cols != n {
		return fmt.Errorf("expression data has %d columns, want one per node (%d)", cols, n)
	}
	if rows != len(ts.Times) {
		return fmt.Errorf("expression data has %d rows but %d time points", rows, len(ts.Times))
	}
	if len(ts.Sigma) != n {
		return fmt.Errorf("sigma has %d entries, want one per node (%d)", len(ts.Sigma), n)
	}
	for i := 1; i < len(ts.Times); i++ {
		if ts.Times[i] <= ts.Times[i-1] {
			return fmt.Errorf("data time sequence is not ascending at position %d", i)
		}
	}
	return nil
}

// timeKey canonically encodes a time sequence for baseline-cache lookups.
// Using the exact float64 bit patterns avoids the collisions and misses a
// formatted string representation would introduce.
func timeKey(t []float64) string {
	buf := make([]byte, 8*len(t))
	for i, v := range t {
		binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return string(buf)
}
