package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/matchstorm/matchstorm/internal/backoff"
	"github.com/matchstorm/matchstorm/internal/chat"
	"github.com/matchstorm/matchstorm/internal/config"
	"github.com/matchstorm/matchstorm/internal/gameapi"
	"github.com/matchstorm/matchstorm/internal/logging"
	"github.com/matchstorm/matchstorm/internal/match"
	"github.com/matchstorm/matchstorm/internal/metrics"
	"github.com/matchstorm/matchstorm/internal/orchestrator"
	"github.com/matchstorm/matchstorm/internal/playerpool"
	"github.com/matchstorm/matchstorm/internal/rating"
	"github.com/matchstorm/matchstorm/internal/tracing"
)

// chatChance is the per-goal probability of a chat line, matching the
// backend's organic traffic expectations.
const chatChance = 0.3

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	traceProvider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := traceProvider.Shutdown(shutdownCtx); err != nil {
			log.Warnw("tracing shutdown failed", "error", err)
		}
	}()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Infow("starting simulator",
		"base_url", cfg.BaseURL, "population", cfg.PopulationSize,
		"matches_per_batch", cfg.MatchesPerBatch, "max_concurrent", cfg.MaxConcurrent,
		"seed", seed)

	collector := metrics.NewCollector()
	tracker := backoff.NewTracker()

	exec := gameapi.NewExecutor(gameapi.ExecutorOptions{
		BaseURL:       cfg.BaseURL,
		Client:        gameapi.NewHTTPClient(cfg.RequestTimeout),
		Tracker:       tracker,
		Collector:     collector,
		Tracer:        traceProvider.Tracer(),
		Log:           log,
		PacingMin:     cfg.PacingMin,
		PacingMax:     cfg.PacingMax,
		RatePerSecond: cfg.Rate,
		Rand:          rand.New(rand.NewSource(seed)),
	})
	apiClient := gameapi.NewClient(exec, cfg.CreateRetries)
	ratingCache := rating.NewCache(apiClient, log)

	pool := playerpool.New(apiClient, playerpool.NewSnapshot(cfg.SnapshotPath), log,
		rand.New(rand.NewSource(seed+1)))

	var chatSender *chat.Sender
	if cfg.ChatURL != "" {
		chatSender = chat.NewSender(cfg.ChatURL, log, rand.New(rand.NewSource(seed+2)))
	}

	params := match.Params{
		MaxDurationMin:        cfg.MatchMaxDurationMin,
		MaxDurationMax:        cfg.MatchMaxDurationMax,
		Dwell:                 cfg.GoalDwell,
		Tick:                  cfg.Tick,
		DurationSinceLastGoal: cfg.GoalDuration == config.GoalDurationSinceLastGoal,
	}
	if chatSender != nil {
		params.ChatChance = chatChance
	}
	if cfg.TimeoutRating == config.TimeoutRatingPenalty {
		params.TimeoutPenalty = cfg.TimeoutPenalty
	}

	// Each match gets its own seeded random source so a run with a fixed
	// seed reproduces every goal sequence.
	var matchSeq int64
	var seqMu sync.Mutex
	runMatch := func(ctx context.Context, a, b playerpool.Player) match.Result {
		seqMu.Lock()
		matchSeq++
		matchSeed := seed + matchSeq
		seqMu.Unlock()

		ctx, span := tracing.StartMatchSpan(ctx, traceProvider.Tracer(), a.ID, b.ID)

		opts := []match.Option{}
		if chatSender != nil {
			opts = append(opts, match.WithChat(chatSender))
		}
		m := match.New(apiClient, ratingCache, log,
			match.Player{ID: a.ID, Name: a.Name},
			match.Player{ID: b.ID, Name: b.Name},
			params,
			rand.New(rand.NewSource(matchSeed)),
			opts...)

		res := m.Run(ctx)
		tracing.EndSpan(span, res.Err)
		return res
	}

	orch := orchestrator.New(orchestrator.Options{
		PopulationSize:   cfg.PopulationSize,
		MatchesPerBatch:  cfg.MatchesPerBatch,
		MaxConcurrent:    cfg.MaxConcurrent,
		BatchTimeout:     cfg.BatchTimeout,
		InterBatchDelay:  5 * time.Second,
		InterBatchJitter: 3 * time.Second,
		Pool:             pool,
		RunMatch:         runMatch,
		Log:              log,
		Rand:             rand.New(rand.NewSource(seed + 3)),
		OnBatchEnd: func(orchestrator.BatchStats) {
			logSummary(log, collector.Snapshot())
		},
	})

	err = orch.Run(ctx)

	logSummary(log, collector.Snapshot())

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Infow("simulator stopped")
	return nil
}

func logSummary(log *zap.SugaredLogger, stats metrics.Stats) {
	log.Infow("call summary",
		"total", stats.Total, "successes", stats.Successes, "failures", stats.Failures,
		"rps", fmt.Sprintf("%.1f", stats.RequestsPerSec),
		"p50", stats.P50Latency, "p90", stats.P90Latency, "p99", stats.P99Latency)
	for _, op := range stats.Operations {
		if op.Failures == 0 {
			log.Infow("operation", "op", op.Operation, "calls", op.Calls)
			continue
		}
		log.Infow("operation", "op", op.Operation, "calls", op.Calls,
			"failures", op.Failures, "by_kind", op.ByKind)
	}
}
