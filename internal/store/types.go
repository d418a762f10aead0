package store

import (
	"fmt"
	"time"
)

// JobConfig holds the configuration of one fitting job (checkpoint copy).
// Kept here rather than in the server package to avoid import cycles.
type JobConfig struct {
	NetworkPath string   `json:"networkPath"`
	DataPaths   []string `json:"dataPaths,omitempty"`
	TimesPath   string   `json:"timesPath,omitempty"`
	PerturbPath string   `json:"perturbPath,omitempty"`

	Mode       string  `json:"mode"` // joint, reduce
	Iters      int     `json:"iters"`
	PopSize    int     `json:"popSize"`
	Seed       int64   `json:"seed"`
	PertFactor float64 `json:"pertFactor,omitempty"`
	Workers    int     `json:"workers,omitempty"`
	Compound   bool    `json:"compound,omitempty"`

	// CheckpointInterval saves a checkpoint every N seconds (0 = disabled).
	CheckpointInterval int `json:"checkpointInterval,omitempty"`
}

// Checkpoint is a resumable snapshot of a fitting job. Only the best
// parameter vector is saved, not the optimizer's population: resuming
// restarts the search from a fresh population (same seed if wanted), so
// the best cost never regresses but convergence is not a perfect
// continuation of the interrupted run.
type Checkpoint struct {
	// JobID is the unique identifier for this fitting job.
	JobID string `json:"jobId"`

	// BestParams is the decision vector (lambda, vmax, reaction
	// strengths) with the lowest cost so far.
	BestParams []float64 `json:"bestParams"`

	// BestCost is the objective value achieved by BestParams.
	BestCost float64 `json:"bestCost"`

	// InitialCost is the starting cost, for improvement tracking.
	InitialCost float64 `json:"initialCost"`

	// Iteration is the optimizer iteration count at checkpoint time.
	Iteration int `json:"iteration"`

	// Timestamp records when this checkpoint was created.
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed to validate that a
	// resumed job uses compatible inputs.
	Config JobConfig `json:"config"`
}

// CheckpointInfo is checkpoint metadata without the parameter payload,
// for listing cheaply.
type CheckpointInfo struct {
	JobID       string    `json:"jobId"`
	BestCost    float64   `json:"bestCost"`
	Iteration   int       `json:"iteration"`
	Timestamp   time.Time `json:"timestamp"`
	Mode        string    `json:"mode"`
	NetworkPath string    `json:"networkPath"`
	Dim         int       `json:"dim"`
}

// NewCheckpoint converts runtime job state into a persistable checkpoint.
func NewCheckpoint(jobID string, bestParams []float64, bestCost, initialCost float64, iteration int, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:       jobID,
		BestParams:  bestParams,
		BestCost:    bestCost,
		InitialCost: initialCost,
		Iteration:   iteration,
		Timestamp:   time.Now(),
		Config:      config,
	}
}

// ToInfo strips a Checkpoint down to its metadata.
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:       c.JobID,
		BestCost:    c.BestCost,
		Iteration:   c.Iteration,
		Timestamp:   c.Timestamp,
		Mode:        c.Config.Mode,
		NetworkPath: c.Config.NetworkPath,
		Dim:         len(c.BestParams),
	}
}

// Validate checks that the checkpoint has usable data.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.BestParams) == 0 {
		return &ValidationError{Field: "BestParams", Reason: "cannot be empty"}
	}
	if c.BestCost < 0 {
		return &ValidationError{Field: "BestCost", Reason: "cannot be negative"}
	}
	if c.InitialCost < 0 {
		return &ValidationError{Field: "InitialCost", Reason: "cannot be negative"}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.NetworkPath == "" {
		return &ValidationError{Field: "Config.NetworkPath", Reason: "cannot be empty"}
	}
	if c.Config.Mode == "" {
		return &ValidationError{Field: "Config.Mode", Reason: "cannot be empty"}
	}
	if c.Config.Iters <= 0 {
		return &ValidationError{Field: "Config.Iters", Reason: "must be positive"}
	}
	if c.Config.PopSize <= 0 {
		return &ValidationError{Field: "Config.PopSize", Reason: "must be positive"}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks that this checkpoint can seed a job with the given
// config: same network and data files, so the saved parameter vector
// still means the same thing.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.NetworkPath != config.NetworkPath {
		return &CompatibilityError{Field: "NetworkPath", Expected: c.Config.NetworkPath, Actual: config.NetworkPath}
	}
	if c.Config.PerturbPath != config.PerturbPath {
		return &CompatibilityError{Field: "PerturbPath", Expected: c.Config.PerturbPath, Actual: config.PerturbPath}
	}
	if len(c.Config.DataPaths) != len(config.DataPaths) {
		return &CompatibilityError{
			Field:    "DataPaths",
			Expected: fmt.Sprintf("%d files", len(c.Config.DataPaths)),
			Actual:   fmt.Sprintf("%d files", len(config.DataPaths)),
		}
	}
	for i := range c.Config.DataPaths {
		if c.Config.DataPaths[i] != config.DataPaths[i] {
			return &CompatibilityError{Field: "DataPaths", Expected: c.Config.DataPaths[i], Actual: config.DataPaths[i]}
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
