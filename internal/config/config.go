package config

import (
	"fmt"
	"strings"
	"time"
)

// TimeoutRatingPolicy selects what happens to ratings when a match times out.
type TimeoutRatingPolicy string

const (
	// TimeoutRatingNone leaves both ratings untouched on timeout.
	TimeoutRatingNone TimeoutRatingPolicy = "none"
	// TimeoutRatingPenalty deducts TimeoutPenalty points from both players.
	TimeoutRatingPenalty TimeoutRatingPolicy = "penalty"
)

// GoalDurationMode selects which duration a goal report carries.
type GoalDurationMode string

const (
	// GoalDurationSinceStart reports seconds elapsed since match start.
	GoalDurationSinceStart GoalDurationMode = "since-start"
	// GoalDurationSinceLastGoal reports seconds since the previous goal, for
	// backends that expect per-goal gaps.
	GoalDurationSinceLastGoal GoalDurationMode = "since-last-goal"
)

type Config struct {
	BaseURL      string `mapstructure:"base_url"`
	ChatURL      string `mapstructure:"chat_url"` // ws:// base for match chat, empty disables chat
	SnapshotPath string `mapstructure:"snapshot_path"`

	PopulationSize  int           `mapstructure:"population_size"`
	MatchesPerBatch int           `mapstructure:"matches_per_batch"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`

	Rate           int           `mapstructure:"rate"` // global requests per second cap, 0 = unlimited
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PacingMin      time.Duration `mapstructure:"pacing_min"`
	PacingMax      time.Duration `mapstructure:"pacing_max"`
	CreateRetries  int           `mapstructure:"create_retries"`

	MatchMaxDurationMin time.Duration `mapstructure:"match_max_duration_min"`
	MatchMaxDurationMax time.Duration `mapstructure:"match_max_duration_max"`
	GoalDwell           time.Duration `mapstructure:"goal_dwell"`
	Tick                time.Duration `mapstructure:"tick"`

	TimeoutRating  TimeoutRatingPolicy `mapstructure:"timeout_rating"`
	TimeoutPenalty int                 `mapstructure:"timeout_penalty"`
	GoalDuration   GoalDurationMode    `mapstructure:"goal_duration"`

	Seed     int64  `mapstructure:"seed"` // 0 means derive from wall clock
	LogLevel string `mapstructure:"log_level"`

	Tracing TracingConfig `mapstructure:"tracing"`

	ConfigFile string `mapstructure:"-"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"` // OTLP endpoint, empty disables export
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.BaseURL) == "" {
		issues = append(issues, "base-url is required")
	}
	if c.PopulationSize < 0 {
		issues = append(issues, "population-size must be >= 0")
	}
	if c.MatchesPerBatch < 1 {
		issues = append(issues, "matches-per-batch must be >= 1")
	}
	if c.MaxConcurrent < 1 {
		issues = append(issues, "max-concurrent must be >= 1")
	}
	if c.BatchTimeout <= 0 {
		issues = append(issues, "batch-timeout must be > 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.RequestTimeout < 0 {
		issues = append(issues, "request-timeout must be >= 0")
	}
	if c.PacingMin < 0 || c.PacingMax < c.PacingMin {
		issues = append(issues, "pacing range must satisfy 0 <= pacing-min <= pacing-max")
	}
	if c.CreateRetries < 0 {
		issues = append(issues, "create-retries must be >= 0")
	}
	if c.MatchMaxDurationMin <= 0 || c.MatchMaxDurationMax < c.MatchMaxDurationMin {
		issues = append(issues, "match max duration range must satisfy 0 < min <= max")
	}
	if c.GoalDwell < 0 {
		issues = append(issues, "goal-dwell must be >= 0")
	}
	if c.Tick <= 0 {
		issues = append(issues, "tick must be > 0")
	}
	switch c.TimeoutRating {
	case TimeoutRatingNone, TimeoutRatingPenalty:
	default:
		issues = append(issues, fmt.Sprintf("unknown timeout-rating policy %q", c.TimeoutRating))
	}
	if c.TimeoutRating == TimeoutRatingPenalty && c.TimeoutPenalty <= 0 {
		issues = append(issues, "timeout-penalty must be > 0 when timeout-rating=penalty")
	}
	switch c.GoalDuration {
	case GoalDurationSinceStart, GoalDurationSinceLastGoal:
	default:
		issues = append(issues, fmt.Sprintf("unknown goal-duration mode %q", c.GoalDuration))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing sample-rate must be between 0.0 and 1.0")
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
