package backoff

import (
	"testing"
	"time"
)

func TestKeyStripsQuery(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{"post", "/api/v1/goals", "POST /api/v1/goals"},
		{"GET", "/api/v1/matches/42?verbose=1", "GET /api/v1/matches/42"},
		{"PUT", "/api/v1/matches/42", "PUT /api/v1/matches/42"},
	}
	for _, tt := range tests {
		if got := Key(tt.method, tt.path); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestShouldWaitCountsDown(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := NewTrackerWithClock(func() time.Time { return now })

	tr.RecordBackoff("POST /api/v1/goals", 10*time.Second)

	first := tr.ShouldWait("POST /api/v1/goals")
	if first != 10*time.Second {
		t.Fatalf("expected 10s wait, got %v", first)
	}

	now = now.Add(4 * time.Second)
	second := tr.ShouldWait("POST /api/v1/goals")
	if second != 6*time.Second {
		t.Fatalf("expected 6s wait, got %v", second)
	}
	if second >= first {
		t.Fatalf("wait did not decrease: %v then %v", first, second)
	}

	now = now.Add(6 * time.Second)
	if d := tr.ShouldWait("POST /api/v1/goals"); d != 0 {
		t.Fatalf("expected zero wait at deadline, got %v", d)
	}
}

func TestRecordBackoffNeverShortens(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := NewTrackerWithClock(func() time.Time { return now })

	tr.RecordBackoff("GET /api/v1/matches", 30*time.Second)
	tr.RecordBackoff("GET /api/v1/matches", 5*time.Second)

	if d := tr.ShouldWait("GET /api/v1/matches"); d != 30*time.Second {
		t.Fatalf("shorter backoff overwrote longer one: got %v", d)
	}

	tr.RecordBackoff("GET /api/v1/matches", time.Minute)
	if d := tr.ShouldWait("GET /api/v1/matches"); d != time.Minute {
		t.Fatalf("longer backoff did not extend deadline: got %v", d)
	}
}

func TestUnknownKeyNeedsNoWait(t *testing.T) {
	tr := NewTracker()
	if d := tr.ShouldWait("DELETE /api/v1/nothing"); d != 0 {
		t.Fatalf("expected zero wait for unknown key, got %v", d)
	}
}
