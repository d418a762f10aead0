package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/cwbudde/grnfit/internal/model"
	"github.com/cwbudde/grnfit/internal/network"
)

// WriteSolutionCSV writes a fitted parameter vector as a tab-separated
// table: one row per node with its decay rate, saturation maximum, and
// the full interaction-matrix row (inactive reactions as 0).
func WriteSolutionCSV(path string, net *network.Network, params []float64, mask *model.Mask) error {
	n := net.Size()
	pv, err := model.Wrap(params, n, mask.Count())
	if err != nil {
		return fmt.Errorf("solution vector: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'

	header := append([]string{"source", "lambda", "vmax"}, net.Names()...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	strengths := pv.Strengths()
	next := 0
	for i := 0; i < n; i++ {
		row := make([]string, 0, n+3)
		row = append(row,
			net.Names()[i],
			strconv.FormatFloat(pv.Lambda()[i], 'g', -1, 64),
			strconv.FormatFloat(pv.Vmax()[i], 'g', -1, 64),
		)
		for j := 0; j < n; j++ {
			v := 0.0
			if mask.Active(i, j) {
				v = strengths[next]
				next++
			}
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", net.Names()[i], err)
		}
	}

	w.Flush()
	return w.Error()
}
