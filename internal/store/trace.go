package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// TraceEntry is one sample of a fitting run's cost history. Entries are
// appended as JSON lines to trace.jsonl next to the job's checkpoint, so
// the convergence curve of a run survives a server restart and can be
// plotted after the fact.
type TraceEntry struct {
	// Iteration is the optimizer iteration count at sample time.
	Iteration int `json:"iteration"`

	// BestCost is the lowest objective value seen so far.
	BestCost float64 `json:"bestCost"`

	// Params optionally carries the best parameter vector. Only the
	// final sample of a run includes it; per-tick samples stay small.
	Params []float64 `json:"params,omitempty"`

	// Timestamp records when the sample was taken.
	Timestamp time.Time `json:"timestamp"`
}

// TraceWriter appends cost-history samples for one job. Safe for
// concurrent use; every append reaches the file before returning.
type TraceWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// OpenTrace opens the cost-history trace of a job for appending,
// creating it on first use. A resumed run extends the existing history.
func (fs *FSStore) OpenTrace(jobID string) (*TraceWriter, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID cannot be empty")
	}
	if err := os.MkdirAll(fs.jobDir(jobID), 0755); err != nil {
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}

	file, err := os.OpenFile(fs.tracePath(jobID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	return &TraceWriter{file: file, enc: json.NewEncoder(file)}, nil
}

// Append writes one sample.
func (tw *TraceWriter) Append(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.enc.Encode(entry); err != nil {
		return fmt.Errorf("failed to append trace entry: %w", err)
	}
	return nil
}

// Close closes the trace file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.file.Close()
}

// ReadTrace returns a job's full cost history in append order. A job
// that never produced a trace yields ErrNotFound.
func (fs *FSStore) ReadTrace(jobID string) ([]TraceEntry, error) {
	file, err := os.Open(fs.tracePath(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{JobID: jobID}
		}
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// Final entries carry the whole parameter vector.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var entries []TraceEntry
	for scanner.Scan() {
		var entry TraceEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode trace entry %d: %w", len(entries), err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	return entries, nil
}
