package server

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/grnfit/internal/data"
	"github.com/cwbudde/grnfit/internal/model"
	"github.com/cwbudde/grnfit/internal/ode"
)

// solutionResponse is the JSON form of a fitted model.
type solutionResponse struct {
	Nodes  []string    `json:"nodes"`
	Lambda []float64   `json:"lambda"`
	Vmax   []float64   `json:"vmax"`
	Matrix [][]float64 `json:"matrix"` // Matrix[i][j] is the influence of node j on node i

	BestCost    float64 `json:"bestCost"`
	InitialCost float64 `json:"initialCost"`
}

// trajectoryResponse is the simulated expression course of the fitted
// model next to the measured mean, at the measurement time points.
type trajectoryResponse struct {
	Nodes     []string    `json:"nodes"`
	Times     []float64   `json:"times"`
	Simulated [][]float64 `json:"simulated"` // Simulated[t][node]
	Measured  [][]float64 `json:"measured"`  // Measured[t][node]
}

// loadInputs re-reads a job's input tables. Handlers call this per
// request rather than keeping the loaded data pinned for every finished
// job.
func loadInputs(config JobConfig) (*data.Inputs, error) {
	return data.Load(config.NetworkPath, config.DataPaths, config.TimesPath, config.PerturbPath)
}

// buildSolution decodes a fitted parameter vector into named per-node
// rates and the dense interaction matrix.
func buildSolution(in *data.Inputs, job *Job) (*solutionResponse, error) {
	n := in.Network.Size()
	pv, err := model.Wrap(job.BestParams, n, in.Mask.Count())
	if err != nil {
		return nil, fmt.Errorf("solution vector: %w", err)
	}

	k := mat.NewDense(n, n, nil)
	in.Mask.Apply(k, pv.Strengths())

	matrix := make([][]float64, n)
	for i := 0; i < n; i++ {
		matrix[i] = make([]float64, n)
		copy(matrix[i], k.RawRowView(i))
	}

	return &solutionResponse{
		Nodes:       in.Network.Names(),
		Lambda:      append([]float64(nil), pv.Lambda()...),
		Vmax:        append([]float64(nil), pv.Vmax()...),
		Matrix:      matrix,
		BestCost:    job.BestCost,
		InitialCost: job.InitialCost,
	}, nil
}

// simulateTrajectory integrates the fitted model over the measurement
// time points. Requires time-series data; perturbation-only jobs have no
// canonical time axis to simulate over.
func simulateTrajectory(in *data.Inputs, params []float64) (*trajectoryResponse, error) {
	if in.Series == nil {
		return nil, fmt.Errorf("job has no time-series data")
	}

	n := in.Network.Size()
	pv, err := model.Wrap(params, n, in.Mask.Count())
	if err != nil {
		return nil, fmt.Errorf("solution vector: %w", err)
	}

	k := mat.NewDense(n, n, nil)
	in.Mask.Apply(k, pv.Strengths())
	sys := model.NewSystem(pv.Lambda(), pv.Vmax(), k)

	traj, _ := ode.Integrate(sys.Derivative, in.Y0, in.Series.Times, ode.Config{})

	points := len(in.Series.Times)
	simulated := make([][]float64, points)
	measured := make([][]float64, points)
	for t := 0; t < points; t++ {
		simulated[t] = append([]float64(nil), traj.RawRowView(t)...)
		measured[t] = append([]float64(nil), in.Series.Data.RawRowView(t)...)
	}

	return &trajectoryResponse{
		Nodes:     in.Network.Names(),
		Times:     append([]float64(nil), in.Series.Times...),
		Simulated: simulated,
		Measured:  measured,
	}, nil
}
