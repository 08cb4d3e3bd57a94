package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load([]string{"--base-url", "http://localhost:8082/api/v1"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8082/api/v1" {
		t.Errorf("unexpected base URL %q", cfg.BaseURL)
	}
	if cfg.PopulationSize != 10 {
		t.Errorf("expected default population 10, got %d", cfg.PopulationSize)
	}
	if cfg.MatchesPerBatch != 15 {
		t.Errorf("expected default matches-per-batch 15, got %d", cfg.MatchesPerBatch)
	}
	if cfg.MaxConcurrent != 5 {
		t.Errorf("expected default max-concurrent 5, got %d", cfg.MaxConcurrent)
	}
	if cfg.TimeoutRating != TimeoutRatingNone {
		t.Errorf("expected default timeout rating %q, got %q", TimeoutRatingNone, cfg.TimeoutRating)
	}
	if cfg.GoalDuration != GoalDurationSinceStart {
		t.Errorf("expected default goal duration %q, got %q", GoalDurationSinceStart, cfg.GoalDuration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadTrimsTrailingSlash(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load([]string{"--base-url", "http://backend:8000/api/"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BaseURL != "http://backend:8000/api" {
		t.Errorf("trailing slash not trimmed: %q", cfg.BaseURL)
	}
}

func TestLoadConfigFileWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"base_url: http://file-backend:8082/api/v1",
		"matches_per_batch: 40",
		"max_concurrent: 8",
		"batch_timeout: 3m",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader()
	cfg, err := loader.Load([]string{"--config", path, "--max-concurrent", "2"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BaseURL != "http://file-backend:8082/api/v1" {
		t.Errorf("config file base URL not applied: %q", cfg.BaseURL)
	}
	if cfg.MatchesPerBatch != 40 {
		t.Errorf("config file matches_per_batch not applied: %d", cfg.MatchesPerBatch)
	}
	if cfg.MaxConcurrent != 2 {
		t.Errorf("flag should override config file: got %d", cfg.MaxConcurrent)
	}
	if cfg.BatchTimeout != 3*time.Minute {
		t.Errorf("batch_timeout not parsed: %v", cfg.BatchTimeout)
	}
}

func TestValidateCatchesBadRanges(t *testing.T) {
	cfg := Config{
		BaseURL:             "http://localhost:8082",
		MatchesPerBatch:     1,
		MaxConcurrent:       1,
		BatchTimeout:        time.Minute,
		PacingMin:           100 * time.Millisecond,
		PacingMax:           10 * time.Millisecond,
		MatchMaxDurationMin: time.Minute,
		MatchMaxDurationMax: 30 * time.Second,
		Tick:                time.Second,
		TimeoutRating:       TimeoutRatingPenalty,
		GoalDuration:        GoalDurationSinceStart,
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	var vErr ValidationError
	if !errorsAs(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	issues := strings.Join(vErr.Issues(), "; ")
	for _, want := range []string{"pacing", "match max duration", "timeout-penalty"} {
		if !strings.Contains(issues, want) {
			t.Errorf("expected issue mentioning %q in %q", want, issues)
		}
	}
}

func errorsAs(err error, target *ValidationError) bool {
	v, ok := err.(ValidationError)
	if ok {
		*target = v
	}
	return ok
}
