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
	resumeDataDir string
	resumeDBPath  string
	resumeOut     string
	resumeIters   int
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume a fit from its checkpoint",
	Long: `Loads the checkpoint of an interrupted fit and continues the search.
The optimizer restarts from a fresh population; the checkpointed best is
kept whenever the new run does not beat it, so the cost never regresses.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	resumeCmd.Flags().StringVar(&resumeDBPath, "db", "", "SQLite checkpoint database (overrides --data-dir)")
	resumeCmd.Flags().StringVar(&resumeOut, "out", "solution.tsv", "Output solution path")
	resumeCmd.Flags().IntVar(&resumeIters, "iters", 0, "Override iteration budget (0 = use checkpointed value)")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpointStore, err := openCheckpointStore(resumeDBPath, resumeDataDir)
	if err != nil {
		return err
	}

	checkpoint, err := checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := checkpoint.Validate(); err != nil {
		return fmt.Errorf("checkpoint is not usable: %w", err)
	}

	config := checkpoint.Config
	iters := config.Iters
	if resumeIters > 0 {
		iters = resumeIters
	}

	slog.Info("Resuming fit",
		"job_id", jobID,
		"network", config.NetworkPath,
		"checkpoint_cost", checkpoint.BestCost,
		"checkpoint_iteration", checkpoint.Iteration,
	)

	inputs, err := data.Load(config.NetworkPath, config.DataPaths, config.TimesPath, config.PerturbPath)
	if err != nil {
		return fmt.Errorf("failed to load inputs: %w", err)
	}

	problemCfg := inputs.ProblemConfig()
	problemCfg.PertFactor = config.PertFactor
	problemCfg.Workers = config.Workers
	problemCfg.Compound = config.Compound

	problem, err := fit.NewProblem(problemCfg)
	if err != nil {
		return err
	}
	defer problem.Close()

	// The saved vector must still fit the current input files.
	if len(checkpoint.BestParams) != problem.Dim() {
		return fmt.Errorf("checkpoint has %d parameters, problem expects %d; input files changed since the checkpoint",
			len(checkpoint.BestParams), problem.Dim())
	}

	optimizer := opt.NewMayfly(iters, config.PopSize, config.Seed)
	result := fit.OptimizeOnce(problem, optimizer)

	bestParams := result.BestParams
	bestCost := result.BestCost
	if checkpoint.BestCost < bestCost {
		slog.Info("Checkpointed solution still best", "checkpoint_cost", checkpoint.BestCost, "new_cost", bestCost)
		bestParams = checkpoint.BestParams
		bestCost = checkpoint.BestCost
	}

	updated := *checkpoint
	updated.BestParams = bestParams
	updated.BestCost = bestCost
	updated.Iteration = checkpoint.Iteration + iters
	updated.Timestamp = time.Now()
	if err := checkpointStore.SaveCheckpoint(jobID, &updated); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	if err := data.WriteSolutionCSV(resumeOut, inputs.Network, bestParams, inputs.Mask); err != nil {
		return err
	}

	fmt.Printf("Wrote %s (cost: %.4f -> %.4f)\n", resumeOut, checkpoint.BestCost, bestCost)
	return nil
}
