package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/grnfit/internal/data"
	"github.com/cwbudde/grnfit/internal/fit"
	"github.com/cwbudde/grnfit/internal/opt"
)

var (
	networkPath string
	dataPaths   []string
	timesPath   string
	perturbPath string
	outPath     string
	mode        string
	iters       int
	popSize     int
	seed        int64
	pertFactor  float64
	workers     int
	compound    bool
	maxRounds   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run single-shot model fitting",
	Long:  `Fits the regulatory model to the given data and writes the solution table.`,
	RunE:  runFit,
}

func init() {
	runCmd.Flags().StringVar(&networkPath, "network", "", "Network edge list, TSV with source/target columns (required)")
	runCmd.Flags().StringSliceVar(&dataPaths, "data", nil, "Expression tables, one per replicate")
	runCmd.Flags().StringVar(&timesPath, "times", "", "Measurement time-sequence file")
	runCmd.Flags().StringVar(&perturbPath, "perturb", "", "Perturbation screen table")
	runCmd.Flags().StringVar(&outPath, "out", "solution.tsv", "Output solution path")
	runCmd.Flags().StringVar(&mode, "mode", "joint", "Fitting mode: joint, reduce")
	runCmd.Flags().IntVar(&iters, "iters", 100, "Max iterations")
	runCmd.Flags().IntVar(&popSize, "pop", 30, "Population size")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	runCmd.Flags().Float64Var(&pertFactor, "pert-factor", 1, "Weight of the perturbation cost against the time-series cost")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Parallel perturbation workers (0 = sequential)")
	runCmd.Flags().BoolVar(&compound, "compound", false, "Compound perturbations across factors (sequential only)")
	runCmd.Flags().IntVar(&maxRounds, "rounds", 0, "Max pruning rounds in reduce mode (0 = until empty)")

	runCmd.MarkFlagRequired("network")
	rootCmd.AddCommand(runCmd)
}

func runFit(cmd *cobra.Command, args []string) error {
	slog.Info("Starting fit", "mode", mode, "network", networkPath, "iters", iters)

	inputs, err := data.Load(networkPath, dataPaths, timesPath, perturbPath)
	if err != nil {
		return err
	}

	slog.Info("Loaded inputs",
		"nodes", inputs.Network.Size(),
		"reactions", inputs.Mask.Count(),
		"has_series", inputs.Series != nil,
		"has_perturbations", inputs.Perturbations != nil,
	)

	cfg := inputs.ProblemConfig()
	cfg.PertFactor = pertFactor
	cfg.Workers = workers
	cfg.Compound = compound

	optimizer := opt.NewMayfly(iters, popSize, seed)

	start := time.Now()
	var result *fit.OptimizationResult
	rounds := 1

	switch mode {
	case "joint":
		problem, err := fit.NewProblem(cfg)
		if err != nil {
			return err
		}
		result = fit.OptimizeOnce(problem, optimizer)
		problem.Close()
	case "reduce":
		steps, err := fit.OptimizeReduce(cfg, optimizer, maxRounds)
		if err != nil {
			return err
		}
		rounds = len(steps)
		for _, step := range steps {
			fmt.Printf("round with %d reactions: cost %.6f\n", step.Mask.Count(), step.Result.BestCost)
		}
		// The full-model round is the reported solution.
		result = steps[0].Result
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}

	elapsed := time.Since(start)

	if err := data.WriteSolutionCSV(outPath, inputs.Network, result.BestParams, inputs.Mask); err != nil {
		return err
	}

	totalEvals := iters * popSize * rounds
	eps := float64(totalEvals) / elapsed.Seconds()

	slog.Info("Fit complete",
		"elapsed", elapsed,
		"initial_cost", result.InitialCost,
		"final_cost", result.BestCost,
		"improvement", result.InitialCost-result.BestCost,
		"evals_per_second", fmt.Sprintf("%.0f", eps),
	)

	fmt.Printf("Wrote %s (cost: %.4f -> %.4f, %.0f evals/sec)\n", outPath, result.InitialCost, result.BestCost, eps)

	return nil
}
