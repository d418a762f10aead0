package store

import (
	"errors"
	"testing"
	"time"
)

func validConfig() JobConfig {
	return JobConfig{
		NetworkPath: "network.tsv",
		DataPaths:   []string{"rep1.tsv", "rep2.tsv"},
		TimesPath:   "times.tsv",
		PerturbPath: "perturb.tsv",
		Mode:        "joint",
		Iters:       100,
		PopSize:     30,
		Seed:        42,
	}
}

func validCheckpoint() *Checkpoint {
	return NewCheckpoint("job-1", []float64{1, 2, 3, 4, 0.5, -0.5}, 1.5, 10, 50, validConfig())
}

func TestNewCheckpointPopulatesFields(t *testing.T) {
	c := validCheckpoint()

	if c.JobID != "job-1" {
		t.Errorf("Expected job id job-1, got %s", c.JobID)
	}
	if c.BestCost != 1.5 || c.InitialCost != 10 || c.Iteration != 50 {
		t.Errorf("Unexpected checkpoint fields: %+v", c)
	}
	if c.Timestamp.IsZero() {
		t.Error("Expected a timestamp")
	}
}

func TestCheckpointValidate(t *testing.T) {
	if err := validCheckpoint().Validate(); err != nil {
		t.Errorf("Expected valid checkpoint, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Checkpoint)
	}{
		{"empty job id", func(c *Checkpoint) { c.JobID = "" }},
		{"empty params", func(c *Checkpoint) { c.BestParams = nil }},
		{"negative best cost", func(c *Checkpoint) { c.BestCost = -1 }},
		{"negative initial cost", func(c *Checkpoint) { c.InitialCost = -1 }},
		{"negative iteration", func(c *Checkpoint) { c.Iteration = -1 }},
		{"zero timestamp", func(c *Checkpoint) { c.Timestamp = time.Time{} }},
		{"missing network", func(c *Checkpoint) { c.Config.NetworkPath = "" }},
		{"missing mode", func(c *Checkpoint) { c.Config.Mode = "" }},
		{"non-positive iters", func(c *Checkpoint) { c.Config.Iters = 0 }},
		{"non-positive popsize", func(c *Checkpoint) { c.Config.PopSize = 0 }},
	}

	for _, tc := range cases {
		c := validCheckpoint()
		tc.mutate(c)
		err := c.Validate()
		if err == nil {
			t.Errorf("Expected validation error for %s", tc.name)
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Expected *ValidationError for %s, got %T", tc.name, err)
		}
	}
}

func TestCheckpointIsCompatible(t *testing.T) {
	c := validCheckpoint()

	if err := c.IsCompatible(validConfig()); err != nil {
		t.Errorf("Expected identical config to be compatible, got %v", err)
	}

	// A changed optimizer budget is still compatible; only the inputs
	// decide what the vector means.
	relaxed := validConfig()
	relaxed.Iters = 999
	relaxed.PopSize = 7
	relaxed.Seed = 1
	if err := c.IsCompatible(relaxed); err != nil {
		t.Errorf("Expected optimizer changes to be compatible, got %v", err)
	}

	otherNet := validConfig()
	otherNet.NetworkPath = "other.tsv"
	if err := c.IsCompatible(otherNet); err == nil {
		t.Error("Expected network path mismatch to be incompatible")
	}

	otherPerturb := validConfig()
	otherPerturb.PerturbPath = "other.tsv"
	if err := c.IsCompatible(otherPerturb); err == nil {
		t.Error("Expected perturbation path mismatch to be incompatible")
	}

	fewerReps := validConfig()
	fewerReps.DataPaths = []string{"rep1.tsv"}
	if err := c.IsCompatible(fewerReps); err == nil {
		t.Error("Expected replicate count mismatch to be incompatible")
	}

	renamedRep := validConfig()
	renamedRep.DataPaths = []string{"rep1.tsv", "other.tsv"}
	err := c.IsCompatible(renamedRep)
	if err == nil {
		t.Fatal("Expected replicate path mismatch to be incompatible")
	}
	var cerr *CompatibilityError
	if !errors.As(err, &cerr) {
		t.Errorf("Expected *CompatibilityError, got %T", err)
	}
}

func TestToInfo(t *testing.T) {
	c := validCheckpoint()
	info := c.ToInfo()

	if info.JobID != c.JobID || info.BestCost != c.BestCost || info.Iteration != c.Iteration {
		t.Errorf("Unexpected info fields: %+v", info)
	}
	if info.Mode != "joint" || info.NetworkPath != "network.tsv" {
		t.Errorf("Expected config metadata carried over, got %+v", info)
	}
	if info.Dim != 6 {
		t.Errorf("Expected dim 6, got %d", info.Dim)
	}
}
