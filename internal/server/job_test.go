package server

import (
	"testing"
)

func testConfig() JobConfig {
	return JobConfig{
		NetworkPath: "network.tsv",
		PerturbPath: "perturb.tsv",
		Mode:        "joint",
		Iters:       10,
		PopSize:     5,
	}
}

func TestCreateJobAssignsUniqueIDs(t *testing.T) {
	jm := NewJobManager()

	a := jm.CreateJob(testConfig())
	b := jm.CreateJob(testConfig())

	if a.ID == "" || b.ID == "" {
		t.Fatal("Expected non-empty job ids")
	}
	if a.ID == b.ID {
		t.Error("Expected unique job ids")
	}
	if a.State != StatePending {
		t.Errorf("Expected new job pending, got %s", a.State)
	}
	if a.StartTime.IsZero() {
		t.Error("Expected start time set")
	}
}

func TestGetJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig())

	got, exists := jm.GetJob(job.ID)
	if !exists || got.ID != job.ID {
		t.Errorf("Expected to find job %s", job.ID)
	}

	if _, exists := jm.GetJob("missing"); exists {
		t.Error("Expected missing job lookup to fail")
	}
}

func TestListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Expected empty listing for fresh manager")
	}

	jm.CreateJob(testConfig())
	jm.CreateJob(testConfig())

	if got := len(jm.ListJobs()); got != 2 {
		t.Errorf("Expected 2 jobs, got %d", got)
	}
}

func TestUpdateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig())

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.BestCost = 1.5
	})
	if err != nil {
		t.Fatalf("Failed to update job: %v", err)
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != StateRunning || got.BestCost != 1.5 {
		t.Errorf("Expected update applied, got state %s cost %g", got.State, got.BestCost)
	}

	if err := jm.UpdateJob("missing", func(j *Job) {}); err == nil {
		t.Error("Expected error for missing job")
	}
}

func TestGetRunningJobs(t *testing.T) {
	jm := NewJobManager()
	a := jm.CreateJob(testConfig())
	jm.CreateJob(testConfig())

	jm.UpdateJob(a.ID, func(j *Job) { j.State = StateRunning })

	running := jm.GetRunningJobs()
	if len(running) != 1 || running[0].ID != a.ID {
		t.Errorf("Expected only job %s running, got %d jobs", a.ID, len(running))
	}
}
