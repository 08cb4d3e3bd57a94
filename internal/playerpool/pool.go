// Package playerpool owns the persistent population of synthetic players.
package playerpool

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matchstorm/matchstorm/internal/rating"
)

// Player is one synthetic identity. The authoritative rating lives in the
// backend; the snapshot only persists identity.
type Player struct {
	ID   string `parquet:"player_id"`
	Name string `parquet:"pseudo"`
}

// Registrar registers a new player's initial rating with the backend.
// Implemented by gameapi.Client.
type Registrar interface {
	CreateRating(ctx context.Context, playerID string, elo int) error
}

// Pool manages the population: lazy growth to a target size and persistence
// across runs.
type Pool struct {
	registrar Registrar
	snapshot  *Snapshot
	log       *zap.SugaredLogger

	mu      sync.Mutex
	players []Player
	rnd     *rand.Rand
}

func New(registrar Registrar, snapshot *Snapshot, log *zap.SugaredLogger, rnd *rand.Rand) *Pool {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Pool{
		registrar: registrar,
		snapshot:  snapshot,
		log:       log,
		rnd:       rnd,
	}
}

// EnsurePopulation loads the persisted population and grows it to target,
// registering each new player's initial rating with the backend and
// persisting the result before returning. An existing population at or above
// target is returned unchanged.
func (p *Pool) EnsurePopulation(ctx context.Context, target int) ([]Player, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.players) == 0 && p.snapshot != nil {
		loaded, err := p.snapshot.Load()
		if err != nil {
			return nil, fmt.Errorf("load population snapshot: %w", err)
		}
		p.players = loaded
		if len(loaded) > 0 {
			p.log.Infow("loaded player population", "count", len(loaded))
		}
	}

	if len(p.players) >= target {
		return p.playersCopy(), nil
	}

	missing := target - len(p.players)
	p.log.Infow("growing player population", "have", len(p.players), "target", target)
	for i := 0; i < missing; i++ {
		player := p.newPlayer()
		if err := p.registrar.CreateRating(ctx, player.ID, rating.DefaultRating); err != nil {
			// A player the backend never heard of would poison every
			// match it is sampled into; stop growing instead.
			return nil, fmt.Errorf("register player %s: %w", player.ID, err)
		}
		p.players = append(p.players, player)
		p.log.Debugw("created player", "id", player.ID, "name", player.Name)
	}

	if err := p.persistLocked(); err != nil {
		return nil, err
	}
	return p.playersCopy(), nil
}

// Persist writes the current population snapshot.
func (p *Pool) Persist() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.persistLocked()
}

func (p *Pool) persistLocked() error {
	if p.snapshot == nil {
		return nil
	}
	if err := p.snapshot.Save(p.players); err != nil {
		return fmt.Errorf("persist population snapshot: %w", err)
	}
	return nil
}

// SamplePair draws two distinct players uniformly at random. A population
// smaller than two yields ephemeral throwaway identities so a match can
// still run.
func (p *Pool) SamplePair() (Player, Player) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.players) < 2 {
		p.log.Warnw("population too small, using ephemeral players", "count", len(p.players))
		return p.newPlayer(), p.newPlayer()
	}

	first := p.rnd.Intn(len(p.players))
	second := p.rnd.Intn(len(p.players) - 1)
	if second >= first {
		second++
	}
	return p.players[first], p.players[second]
}

// Size returns the current population size.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.players)
}

func (p *Pool) newPlayer() Player {
	return Player{
		ID:   uuid.NewString(),
		Name: fmt.Sprintf("player_%06d", p.rnd.Intn(1_000_000)),
	}
}

func (p *Pool) playersCopy() []Player {
	out := make([]Player, len(p.players))
	copy(out, p.players)
	return out
}
