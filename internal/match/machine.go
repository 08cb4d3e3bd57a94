// Package match drives one simulated match from creation to a terminal
// outcome.
package match

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/matchstorm/matchstorm/internal/rating"
)

// State of a simulated match.
type State string

const (
	StateCreating    State = "creating"
	StateProgressing State = "progressing"
	StateCompleted   State = "completed"
	StateTimedOut    State = "timed_out"
	StateAborted     State = "aborted"
)

// Backend is the subset of the API client a match needs.
type Backend interface {
	CreateMatch(ctx context.Context, playerA, playerB string) (string, error)
	UpdateMatch(ctx context.Context, matchID string, completed bool, duration time.Duration, timedOut bool) error
	CreateGoal(ctx context.Context, matchID, playerID string, duration time.Duration) error
}

// Ratings is the rating read/write surface; implemented by rating.Cache.
type Ratings interface {
	Get(ctx context.Context, playerID string) int
	Set(ctx context.Context, playerID string, elo int) error
}

// ChatSender posts an in-match chat line. Optional.
type ChatSender interface {
	Send(ctx context.Context, matchID, sender string) error
}

// Player identifies one participant.
type Player struct {
	ID   string
	Name string
}

// Params tune one match's pacing and policies.
type Params struct {
	GoalTarget     int           // goals needed to win; default 3
	MaxDurationMin time.Duration // lower bound for the random match timeout
	MaxDurationMax time.Duration // upper bound for the random match timeout
	Dwell          time.Duration // minimum time between goals
	Tick           time.Duration // progress loop period
	GoalChance     float64       // per-tick goal probability once dwell has passed; default 0.25
	ChatChance     float64       // per-goal probability of a chat line; 0 disables
	TimeoutPenalty int           // points deducted from both players on timeout; 0 leaves ratings alone

	// DurationSinceLastGoal switches the goal report's duration field from
	// time-since-match-start (the contract default) to time since the
	// previous goal.
	DurationSinceLastGoal bool
}

func (p *Params) normalize() {
	if p.GoalTarget <= 0 {
		p.GoalTarget = 3
	}
	if p.Tick <= 0 {
		p.Tick = time.Second
	}
	if p.MaxDurationMin <= 0 {
		p.MaxDurationMin = 45 * time.Second
	}
	if p.MaxDurationMax < p.MaxDurationMin {
		p.MaxDurationMax = p.MaxDurationMin
	}
	if p.GoalChance <= 0 || p.GoalChance > 1 {
		p.GoalChance = 0.25
	}
}

// Result summarizes a finished match.
type Result struct {
	State    State
	MatchID  string
	GoalsA   int
	GoalsB   int
	Duration time.Duration
	Err      error
}

// Machine simulates one match. It owns its match state exclusively; nothing
// is shared between machines except the collaborators passed in.
type Machine struct {
	api     Backend
	ratings Ratings
	chat    ChatSender
	log     *zap.SugaredLogger
	params  Params

	playerA Player
	playerB Player

	rnd   *rand.Rand
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// pickScorer selects which player scores next given current goal
	// counts; 0 means playerA. Injectable so tests can force sequences.
	pickScorer func(goalsA, goalsB int) int
}

// Option customizes a Machine, mainly for tests.
type Option func(*Machine)

func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

func WithScorer(pick func(goalsA, goalsB int) int) Option {
	return func(m *Machine) { m.pickScorer = pick }
}

func WithChat(chat ChatSender) Option {
	return func(m *Machine) { m.chat = chat }
}

// New builds a machine for a single match. rnd is per-match so a fixed seed
// reproduces the full goal sequence.
func New(api Backend, ratings Ratings, log *zap.SugaredLogger, playerA, playerB Player, params Params, rnd *rand.Rand, opts ...Option) *Machine {
	params.normalize()
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := &Machine{
		api:     api,
		ratings: ratings,
		log:     log,
		params:  params,
		playerA: playerA,
		playerB: playerB,
		rnd:     rnd,
		now:     time.Now,
		sleep:   sleepCtx,
	}
	m.pickScorer = m.weightedScorer
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run drives the match to a terminal state. It never panics across the
// boundary; a caller can rely on exactly one Result per match.
func (m *Machine) Run(ctx context.Context) Result {
	matchID, err := m.api.CreateMatch(ctx, m.playerA.ID, m.playerB.ID)
	if err != nil {
		m.log.Errorw("match creation failed, aborting match",
			"player_a", m.playerA.ID, "player_b", m.playerB.ID, "error", err)
		return Result{State: StateAborted, Err: err}
	}

	start := m.now()
	maxDuration := m.params.MaxDurationMin
	if spread := m.params.MaxDurationMax - m.params.MaxDurationMin; spread > 0 {
		maxDuration += time.Duration(m.rnd.Int63n(int64(spread)))
	}
	lastGoal := start

	var goalsA, goalsB int
	log := m.log.With("match", matchID)
	log.Infow("match started",
		"player_a", m.playerA.Name, "player_b", m.playerB.Name, "max_duration", maxDuration)

	for {
		if ctx.Err() != nil {
			// Cancelled matches make no further calls.
			return Result{State: StateAborted, MatchID: matchID, GoalsA: goalsA, GoalsB: goalsB, Err: ctx.Err()}
		}

		elapsed := m.now().Sub(start)
		if elapsed > maxDuration {
			return m.finishTimedOut(ctx, log, matchID, goalsA, goalsB, elapsed)
		}

		if err := m.sleep(ctx, m.params.Tick); err != nil {
			return Result{State: StateAborted, MatchID: matchID, GoalsA: goalsA, GoalsB: goalsB, Err: err}
		}

		if m.now().Sub(lastGoal) < m.params.Dwell {
			continue
		}
		if m.rnd.Float64() >= m.params.GoalChance {
			continue
		}

		scorer := m.playerA
		goals := &goalsA
		if m.pickScorer(goalsA, goalsB) != 0 {
			scorer = m.playerB
			goals = &goalsB
		}

		goalAt := m.now()
		goalDuration := goalAt.Sub(start)
		if m.params.DurationSinceLastGoal {
			goalDuration = goalAt.Sub(lastGoal)
		}

		if err := m.api.CreateGoal(ctx, matchID, scorer.ID, goalDuration); err != nil {
			// Lost goal, not lost match: the local counter stays put.
			log.Warnw("goal report failed", "player", scorer.ID, "error", err)
			continue
		}

		*goals++
		lastGoal = goalAt
		log.Debugw("goal", "player", scorer.Name, "score", []int{goalsA, goalsB})

		m.maybeChat(ctx, log, matchID, scorer)

		if *goals >= m.params.GoalTarget {
			return m.finishCompleted(ctx, log, matchID, goalsA, goalsB, m.now().Sub(start))
		}
	}
}

// finishCompleted reports the terminal update, then settles ratings. A
// failed update or rating write is logged and the match still counts as
// completed.
func (m *Machine) finishCompleted(ctx context.Context, log *zap.SugaredLogger, matchID string, goalsA, goalsB int, elapsed time.Duration) Result {
	if err := m.api.UpdateMatch(ctx, matchID, true, elapsed, false); err != nil {
		log.Warnw("final match update failed", "error", err)
	}

	winner, loser := m.playerA, m.playerB
	if goalsB > goalsA {
		winner, loser = m.playerB, m.playerA
	}

	winnerRating := m.ratings.Get(ctx, winner.ID)
	loserRating := m.ratings.Get(ctx, loser.ID)
	newWinner, newLoser := rating.Update(winnerRating, loserRating)

	if err := m.ratings.Set(ctx, winner.ID, newWinner); err != nil {
		log.Warnw("winner rating write failed", "player", winner.ID, "elo", newWinner, "error", err)
	}
	if err := m.ratings.Set(ctx, loser.ID, newLoser); err != nil {
		log.Warnw("loser rating write failed", "player", loser.ID, "elo", newLoser, "error", err)
	}

	log.Infow("match completed",
		"winner", winner.Name, "score", []int{goalsA, goalsB},
		"elo", []int{newWinner, newLoser}, "duration", elapsed)

	return Result{State: StateCompleted, MatchID: matchID, GoalsA: goalsA, GoalsB: goalsB, Duration: elapsed}
}

func (m *Machine) finishTimedOut(ctx context.Context, log *zap.SugaredLogger, matchID string, goalsA, goalsB int, elapsed time.Duration) Result {
	if err := m.api.UpdateMatch(ctx, matchID, false, elapsed, true); err != nil {
		log.Warnw("timeout match update failed", "error", err)
	}

	if m.params.TimeoutPenalty > 0 {
		for _, p := range []Player{m.playerA, m.playerB} {
			current := m.ratings.Get(ctx, p.ID)
			if err := m.ratings.Set(ctx, p.ID, current-m.params.TimeoutPenalty); err != nil {
				log.Warnw("timeout penalty write failed", "player", p.ID, "error", err)
			}
		}
	}

	log.Infow("match timed out", "score", []int{goalsA, goalsB}, "duration", elapsed)
	return Result{State: StateTimedOut, MatchID: matchID, GoalsA: goalsA, GoalsB: goalsB, Duration: elapsed}
}

func (m *Machine) maybeChat(ctx context.Context, log *zap.SugaredLogger, matchID string, sender Player) {
	if m.chat == nil || m.params.ChatChance <= 0 {
		return
	}
	if m.rnd.Float64() >= m.params.ChatChance {
		return
	}
	if err := m.chat.Send(ctx, matchID, sender.Name); err != nil {
		log.Debugw("chat message failed", "sender", sender.Name, "error", err)
	}
}

// weightedScorer picks the next scorer with a slight rich-get-richer bias:
// each player's weight is 1 + 0.1 per goal already scored.
func (m *Machine) weightedScorer(goalsA, goalsB int) int {
	weightA := 1 + 0.1*float64(goalsA)
	weightB := 1 + 0.1*float64(goalsB)
	if m.rnd.Float64() < weightA/(weightA+weightB) {
		return 0
	}
	return 1
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
