package server

import (
	"testing"
	"time"
)

func TestBroadcasterDeliversToSubscribers(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job-1")
	defer eb.Unsubscribe("job-1", ch)

	event := ProgressEvent{JobID: "job-1", State: StateRunning, Iterations: 5, BestCost: 1.5, Timestamp: time.Now()}
	eb.Broadcast(event)

	select {
	case got := <-ch:
		if got.Iterations != 5 || got.BestCost != 1.5 {
			t.Errorf("Unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected event delivery")
	}
}

func TestBroadcasterReplaysLastEventToNewSubscribers(t *testing.T) {
	eb := NewEventBroadcaster()

	eb.Broadcast(ProgressEvent{JobID: "job-1", State: StateCompleted, BestCost: 0.5, Timestamp: time.Now()})

	ch := eb.Subscribe("job-1")
	defer eb.Unsubscribe("job-1", ch)

	select {
	case got := <-ch:
		if got.State != StateCompleted {
			t.Errorf("Expected completed replay, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected last-event replay on subscribe")
	}
}

func TestBroadcasterIsolatesJobs(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job-1")
	defer eb.Unsubscribe("job-1", ch)

	eb.Broadcast(ProgressEvent{JobID: "other", State: StateRunning, Timestamp: time.Now()})

	select {
	case got := <-ch:
		t.Errorf("Expected no event for other job, got %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcasterCleanupClosesChannels(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job-1")
	eb.CleanupJob("job-1")

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Expected channel closed after cleanup")
		}
	case <-time.After(time.Second):
		t.Fatal("Expected closed channel read to return immediately")
	}
}
