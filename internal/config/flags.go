package config

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "matchstorm",
		Short:         "Simulates concurrent game matches against a remote backend",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Target backend
	flags.String("base-url", "", "Base URL of the game backend API (e.g. http://localhost:8082/api/v1)")
	flags.String("chat-url", "", "WebSocket base URL for match chat (empty disables chat)")
	flags.String("snapshot-path", "player_list.parquet", "Path to the persisted player population snapshot")

	// Batch control
	flags.IntP("population-size", "p", 10, "Target number of synthetic players")
	flags.IntP("matches-per-batch", "m", 15, "Matches launched per batch")
	flags.IntP("max-concurrent", "c", 5, "Maximum simultaneously running matches")
	flags.Duration("batch-timeout", 10*time.Minute, "Deadline for a whole batch")

	// Request pacing
	flags.IntP("rate", "r", 0, "Global requests per second cap (0 means unlimited)")
	flags.Duration("request-timeout", 30*time.Second, "Per-request timeout")
	flags.Duration("pacing-min", 50*time.Millisecond, "Minimum randomized delay before each call")
	flags.Duration("pacing-max", 250*time.Millisecond, "Maximum randomized delay before each call")
	flags.Int("create-retries", 3, "Retry attempts for match creation")

	// Match pacing
	flags.Duration("match-max-duration-min", 45*time.Second, "Lower bound for the per-match random timeout")
	flags.Duration("match-max-duration-max", 120*time.Second, "Upper bound for the per-match random timeout")
	flags.Duration("goal-dwell", 5*time.Second, "Minimum time between goals in one match")
	flags.Duration("tick", time.Second, "Progress loop tick")

	// Rating policy
	flags.String("timeout-rating", string(TimeoutRatingNone), "Rating policy on timeout: 'none' or 'penalty'")
	flags.Int("timeout-penalty", 0, "Points deducted from both players when timeout-rating=penalty")
	flags.String("goal-duration", string(GoalDurationSinceStart), "Goal duration contract: 'since-start' or 'since-last-goal'")

	// Misc
	flags.Int64("seed", 0, "Random seed (0 derives one from the wall clock)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP endpoint for trace export (empty disables)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "matchstorm", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Skip TLS for the OTLP exporter")
}
