// Package orchestrator runs batches of simulated matches under a
// concurrency bound.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/matchstorm/matchstorm/internal/match"
	"github.com/matchstorm/matchstorm/internal/playerpool"
)

// PlayerSource supplies and persists the population; implemented by
// playerpool.Pool.
type PlayerSource interface {
	EnsurePopulation(ctx context.Context, target int) ([]playerpool.Player, error)
	SamplePair() (playerpool.Player, playerpool.Player)
	Persist() error
}

// RunMatchFunc simulates one match between a pair to a terminal state.
type RunMatchFunc func(ctx context.Context, a, b playerpool.Player) match.Result

// Options configure the Orchestrator.
type Options struct {
	PopulationSize  int
	MatchesPerBatch int
	MaxConcurrent   int
	BatchTimeout    time.Duration

	InterBatchDelay  time.Duration // base sleep between batches
	InterBatchJitter time.Duration // random extra sleep, 0..jitter
	FailureCooldown  time.Duration // sleep after a failed batch before restart

	Pool     PlayerSource
	RunMatch RunMatchFunc
	Log      *zap.SugaredLogger
	Rand     *rand.Rand

	// OnBatchEnd, when set, is called after every successful batch. Used to
	// emit periodic call summaries.
	OnBatchEnd func(BatchStats)

	// Sleep is injectable for tests; defaults to a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o *Options) normalize() {
	if o.MatchesPerBatch <= 0 {
		o.MatchesPerBatch = 15
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 5
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = 10 * time.Minute
	}
	if o.InterBatchDelay <= 0 {
		o.InterBatchDelay = 5 * time.Second
	}
	if o.FailureCooldown <= 0 {
		o.FailureCooldown = 30 * time.Second
	}
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
}

// BatchStats tallies the terminal states of one batch.
type BatchStats struct {
	Launched  int
	Completed int
	TimedOut  int
	Aborted   int
}

// Orchestrator maintains a bounded set of concurrently running matches and
// restarts itself after systemic failures. It only returns when its context
// is cancelled.
type Orchestrator struct {
	opt Options
}

func New(opt Options) *Orchestrator {
	opt.normalize()
	return &Orchestrator{opt: opt}
}

// Run loops batches until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	log := o.opt.Log
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats, err := o.RunBatch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			log.Errorw("batch failed, cooling down",
				"cooldown", o.opt.FailureCooldown, "error", err)
			if sleepErr := o.opt.Sleep(ctx, o.opt.FailureCooldown); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		log.Infow("batch finished",
			"launched", stats.Launched, "completed", stats.Completed,
			"timed_out", stats.TimedOut, "aborted", stats.Aborted)
		if o.opt.OnBatchEnd != nil {
			o.opt.OnBatchEnd(stats)
		}

		if err := o.opt.Pool.Persist(); err != nil {
			log.Warnw("population persist failed", "error", err)
		}

		pause := o.opt.InterBatchDelay
		if o.opt.InterBatchJitter > 0 {
			pause += time.Duration(o.opt.Rand.Int63n(int64(o.opt.InterBatchJitter)))
		}
		if err := o.opt.Sleep(ctx, pause); err != nil {
			return err
		}
	}
}

// RunBatch launches matches up to the batch target under the concurrency
// bound, then awaits every one of them. Panics from match tasks or the
// launch loop surface as batch errors so the outer loop can cool down and
// restart instead of crashing the process.
func (o *Orchestrator) RunBatch(ctx context.Context) (stats BatchStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch panic: %v", r)
		}
	}()

	batchID := ulid.Make().String()
	log := o.opt.Log.With("batch", batchID)

	if _, err := o.opt.Pool.EnsurePopulation(ctx, o.opt.PopulationSize); err != nil {
		return stats, err
	}

	batchCtx, cancel := context.WithTimeout(ctx, o.opt.BatchTimeout)
	defer cancel()

	log.Infow("batch starting",
		"target", o.opt.MatchesPerBatch, "max_concurrent", o.opt.MaxConcurrent)

	permits := make(chan struct{}, o.opt.MaxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex

	launch := func(a, b playerpool.Player) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("match task panicked", "panic", r)
				mu.Lock()
				stats.Aborted++
				mu.Unlock()
			}
			<-permits // release the concurrency slot on every exit path
		}()

		res := o.opt.RunMatch(batchCtx, a, b)

		mu.Lock()
		defer mu.Unlock()
		switch res.State {
		case match.StateCompleted:
			stats.Completed++
		case match.StateTimedOut:
			stats.TimedOut++
		default:
			stats.Aborted++
		}
	}

	for stats.Launched < o.opt.MatchesPerBatch {
		if batchCtx.Err() != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			log.Warnw("batch deadline reached before all matches launched",
				"launched", stats.Launched)
			return stats, nil
		}
		select {
		case permits <- struct{}{}:
		case <-batchCtx.Done():
			// Deadline or cancellation while waiting for a slot: stop
			// launching and await what is already running.
			wg.Wait()
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			log.Warnw("batch deadline reached before all matches launched",
				"launched", stats.Launched)
			return stats, nil
		}

		a, b := o.opt.Pool.SamplePair()
		stats.Launched++
		wg.Add(1)
		go launch(a, b)
	}

	// All launched; matches past the deadline see batchCtx cancelled and
	// terminate, so this wait is bounded.
	wg.Wait()

	if ctx.Err() != nil {
		return stats, ctx.Err()
	}
	return stats, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
