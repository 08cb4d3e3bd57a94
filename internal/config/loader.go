package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files, environment, and flags.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help.
var ErrHelpRequested = errors.New("help requested")

func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and the optional config file into a
// Config. Precedence: flags > environment (MATCHSTORM_*) > config file >
// defaults.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			_ = cmd.Help()
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			_ = cmd.Help()
			return nil, ErrHelpRequested
		}
	}

	v := viper.New()
	v.SetEnvPrefix("MATCHSTORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	configPath := flagSet.Lookup("config").Value.String()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	if err := bindFlags(v, flagSet); err != nil {
		return nil, err
	}

	cfg := &Config{ConfigFile: configPath}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.ChatURL = strings.TrimRight(strings.TrimSpace(cfg.ChatURL), "/")

	return cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("snapshot_path", "player_list.parquet")
	v.SetDefault("population_size", 10)
	v.SetDefault("matches_per_batch", 15)
	v.SetDefault("max_concurrent", 5)
	v.SetDefault("batch_timeout", 10*time.Minute)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("pacing_min", 50*time.Millisecond)
	v.SetDefault("pacing_max", 250*time.Millisecond)
	v.SetDefault("create_retries", 3)
	v.SetDefault("match_max_duration_min", 45*time.Second)
	v.SetDefault("match_max_duration_max", 120*time.Second)
	v.SetDefault("goal_dwell", 5*time.Second)
	v.SetDefault("tick", time.Second)
	v.SetDefault("timeout_rating", string(TimeoutRatingNone))
	v.SetDefault("goal_duration", string(GoalDurationSinceStart))
	v.SetDefault("log_level", "info")
	v.SetDefault("tracing.protocol", "grpc")
	v.SetDefault("tracing.service_name", "matchstorm")
	v.SetDefault("tracing.sample_rate", 1.0)
}

// bindFlags maps dashed flag names onto viper's underscore/dotted keys.
// Only flags the user actually set override file and env values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" {
			return
		}
		key := flagKey(f.Name)
		if f.Changed {
			v.Set(key, f.Value.String())
			return
		}
		if !v.IsSet(key) {
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		}
	})
	return bindErr
}

func flagKey(name string) string {
	if rest, ok := strings.CutPrefix(name, "tracing-"); ok {
		return "tracing." + strings.ReplaceAll(rest, "-", "_")
	}
	return strings.ReplaceAll(name, "-", "_")
}
