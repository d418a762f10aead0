// Package data parses the tab-separated input tables of the toolbox and
// writes fitted solutions back out.
//
// The network file needs "source" and "target" columns. Expression tables
// need a "source" column naming the node and one column per time point,
// t0..tn in ascending order. The time-sequence file holds one header row
// and one value row. The perturbation table is purely numeric, one row
// per perturbed node.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/grnfit/internal/fit"
	"github.com/cwbudde/grnfit/internal/network"
)

func openTSV(path string) (*csv.Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	r := csv.NewReader(f)
	r.Comma = '\t'
	r.TrimLeadingSpace = true
	return r, f, nil
}

// ParseNetwork reads a source/target edge list into a Network.
func ParseNetwork(path string) (*network.Network, error) {
	r, f, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read network header: %w", err)
	}
	srcCol, dstCol := -1, -1
	for i, h := range header {
		switch h {
		case "source":
			srcCol = i
		case "target":
			dstCol = i
		}
	}
	if srcCol < 0 || dstCol < 0 {
		return nil, fmt.Errorf("network file %s needs 'source' and 'target' columns", path)
	}

	var edges [][2]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read network row: %w", err)
		}
		edges = append(edges, [2]string{rec[srcCol], rec[dstCol]})
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("network file %s has no edges", path)
	}
	return network.New(edges), nil
}

// ParseTimeSequence reads the measurement time points.
func ParseTimeSequence(path string) ([]float64, error) {
	r, f, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("failed to read time header: %w", err)
	}

	var times []float64
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read time row: %w", err)
		}
		for _, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("bad time value %q: %w", field, err)
			}
			times = append(times, v)
		}
	}
	if len(times) < 2 {
		return nil, fmt.Errorf("time sequence in %s has %d points, want at least 2", path, len(times))
	}
	return times, nil
}

// ParseDataTable reads one replicate's expression table into a
// timepoints x nodes matrix, columns ordered by node id.
func ParseDataTable(path string, net *network.Network, points int) (*mat.Dense, error) {
	r, f, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read data header: %w", err)
	}
	if len(header) != points+1 || header[0] != "source" {
		return nil, fmt.Errorf("data file %s wants a 'source' column plus %d time columns", path, points)
	}

	n := net.Size()
	out := mat.NewDense(points, n, nil)
	seen := make([]bool, n)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read data row: %w", err)
		}
		id, ok := net.ID(rec[0])
		if !ok {
			return nil, fmt.Errorf("data file %s names unknown node %q", path, rec[0])
		}
		seen[id] = true
		for t := 0; t < points; t++ {
			v, err := strconv.ParseFloat(rec[t+1], 64)
			if err != nil {
				return nil, fmt.Errorf("bad value %q for node %s: %w", rec[t+1], rec[0], err)
			}
			out.Set(t, id, v)
		}
	}
	for id, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("data file %s is missing node %s", path, net.Names()[id])
		}
	}
	return out, nil
}

// LoadSeries folds one or more replicate tables into the mean expression
// course plus a per-node standard deviation (unbiased over replicates,
// averaged over time points, as the reference toolbox does).
func LoadSeries(dataPaths []string, timesPath string, net *network.Network) (*fit.TimeSeries, error) {
	times, err := ParseTimeSequence(timesPath)
	if err != nil {
		return nil, err
	}

	replicates := make([]*mat.Dense, 0, len(dataPaths))
	for _, path := range dataPaths {
		table, err := ParseDataTable(path, net, len(times))
		if err != nil {
			return nil, err
		}
		replicates = append(replicates, table)
	}
	if len(replicates) == 0 {
		return nil, fmt.Errorf("at least one expression table is required")
	}

	points, n := len(times), net.Size()
	mean := mat.NewDense(points, n, nil)
	for t := 0; t < points; t++ {
		for j := 0; j < n; j++ {
			sum := 0.0
			for _, rep := range replicates {
				sum += rep.At(t, j)
			}
			mean.Set(t, j, sum/float64(len(replicates)))
		}
	}

	sigma := make([]float64, n)
	if len(replicates) > 1 {
		for j := 0; j < n; j++ {
			acc := 0.0
			for t := 0; t < points; t++ {
				varSum := 0.0
				for _, rep := range replicates {
					d := rep.At(t, j) - mean.At(t, j)
					varSum += d * d
				}
				acc += math.Sqrt(varSum / float64(len(replicates)-1))
			}
			sigma[j] = acc / float64(points)
		}
	} else {
		for j := range sigma {
			sigma[j] = 1
		}
	}

	return &fit.TimeSeries{Data: mean, Sigma: sigma, Times: times}, nil
}

// ParsePerturbations reads the numeric k x (k+w) perturbation table. A
// non-numeric first row is treated as a header and skipped.
func ParsePerturbations(path string) (*mat.Dense, error) {
	r, f, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows [][]float64
	cols := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read perturbation row: %w", err)
		}
		row := make([]float64, len(rec))
		numeric := true
		for i, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				numeric = false
				break
			}
			row[i] = v
		}
		if !numeric {
			if len(rows) == 0 {
				continue // header
			}
			return nil, fmt.Errorf("non-numeric perturbation row in %s", path)
		}
		if cols == 0 {
			cols = len(row)
		} else if len(row) != cols {
			return nil, fmt.Errorf("ragged perturbation table in %s", path)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("perturbation file %s is empty", path)
	}

	out := mat.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		out.SetRow(i, row)
	}
	return out, nil
}
