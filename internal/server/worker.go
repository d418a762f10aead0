package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/grnfit/internal/data"
	"github.com/cwbudde/grnfit/internal/fit"
	"github.com/cwbudde/grnfit/internal/opt"
	"github.com/cwbudde/grnfit/internal/store"
)

// runJob executes a fitting job in the background.
// If checkpointStore is not nil and the job has checkpointInterval > 0,
// periodic checkpoints are saved.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "network", job.Config.NetworkPath, "mode", job.Config.Mode)

	// Load network and measurement tables
	inputs, err := data.Load(job.Config.NetworkPath, job.Config.DataPaths, job.Config.TimesPath, job.Config.PerturbPath)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to load inputs: %w", err))
		return err
	}

	slog.Info("Loaded inputs",
		"job_id", jobID,
		"nodes", inputs.Network.Size(),
		"reactions", inputs.Mask.Count(),
		"has_series", inputs.Series != nil,
		"has_perturbations", inputs.Perturbations != nil,
	)

	problemCfg := inputs.ProblemConfig()
	problemCfg.PertFactor = job.Config.PertFactor
	problemCfg.Workers = job.Config.Workers
	problemCfg.Compound = job.Config.Compound

	optimizer := opt.NewMayfly(job.Config.Iters, job.Config.PopSize, job.Config.Seed)

	// Check for cancellation before starting expensive operation
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	// Record the cost history when the store keeps files per job
	var trace *store.TraceWriter
	if fs, ok := checkpointStore.(*store.FSStore); ok {
		trace, err = fs.OpenTrace(jobID)
		if err != nil {
			slog.Warn("Failed to open cost trace", "job_id", jobID, "error", err)
			trace = nil
		} else {
			defer trace.Close()
		}
	}

	// Start progress monitoring goroutine
	start := time.Now()
	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, start, trace, progressDone)

	// Start checkpoint monitoring goroutine if enabled
	checkpointDone := make(chan struct{})
	if checkpointStore != nil && job.Config.CheckpointInterval > 0 {
		go monitorCheckpoints(ctx, jm, checkpointStore, jobID, checkpointDone)
	} else {
		close(checkpointDone) // No checkpointing, close immediately
	}

	var result *fit.OptimizationResult
	var reduction []ReductionRound
	rounds := 1

	switch job.Config.Mode {
	case "joint":
		problem, err := fit.NewProblem(problemCfg)
		if err != nil {
			markJobFailed(jm, jobID, err)
			close(progressDone)
			return err
		}
		result = fit.OptimizeOnce(problem, optimizer)
		problem.Close()

	case "reduce":
		steps, err := fit.OptimizeReduce(problemCfg, optimizer, 0)
		if err != nil {
			markJobFailed(jm, jobID, err)
			close(progressDone)
			return err
		}
		rounds = len(steps)
		// The full-model round is the reported solution; the pruned
		// rounds form the cost-vs-reactions profile.
		result = steps[0].Result
		reduction = make([]ReductionRound, len(steps))
		for i, step := range steps {
			reduction[i] = ReductionRound{
				Reactions: step.Mask.Count(),
				BestCost:  step.Result.BestCost,
			}
		}

	default:
		err := fmt.Errorf("unknown mode: %s", job.Config.Mode)
		markJobFailed(jm, jobID, err)
		close(progressDone)
		return err
	}

	close(progressDone)
	elapsed := time.Since(start)

	// Check for cancellation after optimization
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	iterations := job.Config.Iters * rounds
	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.BestParams = result.BestParams
		j.BestCost = result.BestCost
		j.InitialCost = result.InitialCost
		j.Iterations = iterations
		j.Rounds = rounds
		j.Reduction = reduction
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	// Compute throughput
	totalEvals := iterations * job.Config.PopSize
	eps := float64(totalEvals) / elapsed.Seconds()

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"initial_cost", result.InitialCost,
		"best_cost", result.BestCost,
		"rounds", rounds,
		"evals_per_second", eps,
	)

	// The final trace sample carries the fitted vector
	if trace != nil {
		if err := trace.Append(store.TraceEntry{
			Iteration: iterations,
			BestCost:  result.BestCost,
			Params:    result.BestParams,
			Timestamp: time.Now(),
		}); err != nil {
			slog.Warn("Failed to append final trace entry", "job_id", jobID, "error", err)
		}
	}

	// Save the final checkpoint so the result survives a server restart
	if checkpointStore != nil {
		if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
			slog.Error("Failed to save final checkpoint", "job_id", jobID, "error", err)
		}
	}

	// Broadcast final completion event
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:      jobID,
		State:      StateCompleted,
		Iterations: iterations,
		BestCost:   result.BestCost,
		Rounds:     rounds,
		EPS:        eps,
		Timestamp:  time.Now(),
	})

	return nil
}

// monitorProgress periodically broadcasts progress events during
// optimization and samples the cost-history trace when one is open.
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, startTime time.Time, trace *store.TraceWriter, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond) // Throttle to 2 updates per second
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}

			elapsed := time.Since(startTime).Seconds()

			// Rough estimate from iterations completed so far
			var eps float64
			if elapsed > 0 && job.Iterations > 0 {
				totalEvals := job.Iterations * job.Config.PopSize
				eps = float64(totalEvals) / elapsed
			}

			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:      jobID,
				State:      job.State,
				Iterations: job.Iterations,
				BestCost:   job.BestCost,
				Rounds:     job.Rounds,
				EPS:        eps,
				Timestamp:  time.Now(),
			})

			if trace != nil {
				if err := trace.Append(store.TraceEntry{
					Iteration: job.Iterations,
					BestCost:  job.BestCost,
					Timestamp: time.Now(),
				}); err != nil {
					slog.Warn("Failed to append trace entry", "job_id", jobID, "error", err)
				}
			}
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

// monitorCheckpoints periodically saves checkpoints during optimization
func monitorCheckpoints(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, done chan struct{}) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	interval := time.Duration(job.Config.CheckpointInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint saves a checkpoint for the given job
func saveCheckpoint(jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	// Skip if no best params yet
	if len(job.BestParams) == 0 {
		slog.Debug("Skipping checkpoint, no best params yet", "job_id", jobID)
		return nil
	}

	checkpoint := store.NewCheckpoint(
		jobID,
		job.BestParams,
		job.BestCost,
		job.InitialCost,
		job.Iterations,
		job.Config,
	)

	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"iteration", job.Iterations,
		"best_cost", job.BestCost,
	)
	return nil
}
