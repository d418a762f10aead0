package data

import (
	"fmt"

	"github.com/cwbudde/grnfit/internal/fit"
	"github.com/cwbudde/grnfit/internal/model"
	"github.com/cwbudde/grnfit/internal/network"
)

// Inputs bundles everything a fitting problem needs, loaded from disk.
type Inputs struct {
	Network       *network.Network
	Mask          *model.Mask
	Y0            []float64
	Series        *fit.TimeSeries
	Perturbations *fit.PerturbationSet
}

// Load reads the network plus whatever data files are given. At least
// one of (dataPaths+timesPath) and perturbPath must be present. The
// initial state y0 is the measured expression at the first time point,
// or a ones vector for perturbation-only problems.
func Load(networkPath string, dataPaths []string, timesPath, perturbPath string) (*Inputs, error) {
	net, err := ParseNetwork(networkPath)
	if err != nil {
		return nil, err
	}
	mask, err := model.NewMask(net.Size(), net.Mask())
	if err != nil {
		return nil, err
	}

	in := &Inputs{Network: net, Mask: mask}

	if len(dataPaths) > 0 {
		if timesPath == "" {
			return nil, fmt.Errorf("expression data needs a time-sequence file")
		}
		series, err := LoadSeries(dataPaths, timesPath, net)
		if err != nil {
			return nil, err
		}
		in.Series = series
	}

	if perturbPath != "" {
		raw, err := ParsePerturbations(perturbPath)
		if err != nil {
			return nil, err
		}
		set, err := fit.NewPerturbationSet(raw, net.Size())
		if err != nil {
			return nil, err
		}
		in.Perturbations = set
	}

	if in.Series == nil && in.Perturbations == nil {
		return nil, fmt.Errorf("no expression data and no perturbation data given")
	}

	n := net.Size()
	in.Y0 = make([]float64, n)
	if in.Series != nil {
		for j := 0; j < n; j++ {
			in.Y0[j] = in.Series.Data.At(0, j)
		}
	} else {
		for j := range in.Y0 {
			in.Y0[j] = 1
		}
	}

	return in, nil
}

// ProblemConfig assembles a fit.Config from loaded inputs.
func (in *Inputs) ProblemConfig() fit.Config {
	return fit.Config{
		Mask:          in.Mask,
		Y0:            in.Y0,
		Series:        in.Series,
		Perturbations: in.Perturbations,
	}
}
