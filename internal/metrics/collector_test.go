package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCollectorCountsOutcomes(t *testing.T) {
	c := NewCollector()
	c.RecordCall("create_match", 12*time.Millisecond, "")
	c.RecordCall("create_match", 40*time.Millisecond, "rate_limited")
	c.RecordCall("create_goal", 5*time.Millisecond, "")
	c.RecordCall("create_goal", 8*time.Millisecond, "transport")

	stats := c.Snapshot()
	if stats.Total != 4 {
		t.Fatalf("expected 4 calls, got %d", stats.Total)
	}
	if stats.Successes != 2 || stats.Failures != 2 {
		t.Fatalf("expected 2/2 success/failure, got %d/%d", stats.Successes, stats.Failures)
	}
	if len(stats.Operations) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(stats.Operations))
	}
	// Sorted by name: create_goal then create_match.
	goal := stats.Operations[0]
	if goal.Operation != "create_goal" || goal.Calls != 2 || goal.Failures != 1 {
		t.Errorf("unexpected goal stats: %+v", goal)
	}
	if goal.ByKind["transport"] != 1 {
		t.Errorf("expected 1 transport failure, got %v", goal.ByKind)
	}
}

func TestCollectorConcurrentAccess(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordCall("update_match", time.Millisecond, "")
			}
		}()
	}
	wg.Wait()
	if got := c.Snapshot().Total; got != 800 {
		t.Fatalf("expected 800 recorded calls, got %d", got)
	}
}
