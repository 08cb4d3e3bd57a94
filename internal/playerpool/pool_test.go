package playerpool

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/matchstorm/matchstorm/internal/rating"
)

type fakeRegistrar struct {
	mu         sync.Mutex
	registered map[string]int
	err        error
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{registered: make(map[string]int)}
}

func (f *fakeRegistrar) CreateRating(ctx context.Context, playerID string, elo int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.registered[playerID] = elo
	return nil
}

func testSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	return NewSnapshot(filepath.Join(t.TempDir(), "player_list.parquet"))
}

func TestEnsurePopulationCreatesAndRegisters(t *testing.T) {
	registrar := newFakeRegistrar()
	pool := New(registrar, testSnapshot(t), nil, rand.New(rand.NewSource(1)))

	players, err := pool.EnsurePopulation(context.Background(), 10)
	if err != nil {
		t.Fatalf("EnsurePopulation failed: %v", err)
	}
	if len(players) != 10 {
		t.Fatalf("expected 10 players, got %d", len(players))
	}
	if len(registrar.registered) != 10 {
		t.Fatalf("expected 10 registered ratings, got %d", len(registrar.registered))
	}
	for id, elo := range registrar.registered {
		if elo != rating.DefaultRating {
			t.Errorf("player %s registered with %d, want %d", id, elo, rating.DefaultRating)
		}
	}

	seen := make(map[string]bool)
	for _, p := range players {
		if p.ID == "" || seen[p.ID] {
			t.Errorf("player id missing or duplicated: %q", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestEnsurePopulationRoundTripsSnapshot(t *testing.T) {
	snapshot := testSnapshot(t)
	registrar := newFakeRegistrar()

	pool := New(registrar, snapshot, nil, rand.New(rand.NewSource(1)))
	created, err := pool.EnsurePopulation(context.Background(), 7)
	if err != nil {
		t.Fatalf("EnsurePopulation failed: %v", err)
	}

	// A fresh pool over the same snapshot must see the same identities and
	// create nothing new.
	registrar2 := newFakeRegistrar()
	pool2 := New(registrar2, snapshot, nil, rand.New(rand.NewSource(2)))
	reloaded, err := pool2.EnsurePopulation(context.Background(), 7)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(registrar2.registered) != 0 {
		t.Errorf("reload should not register players, registered %d", len(registrar2.registered))
	}

	if len(reloaded) != len(created) {
		t.Fatalf("expected %d players after reload, got %d", len(created), len(reloaded))
	}
	want := idsOf(created)
	got := idsOf(reloaded)
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("identity set changed across persist/reload:\nwant %v\ngot  %v", want, got)
		}
	}
}

func TestEnsurePopulationTopsUpExisting(t *testing.T) {
	snapshot := testSnapshot(t)
	pool := New(newFakeRegistrar(), snapshot, nil, rand.New(rand.NewSource(1)))
	if _, err := pool.EnsurePopulation(context.Background(), 3); err != nil {
		t.Fatal(err)
	}

	registrar := newFakeRegistrar()
	pool2 := New(registrar, snapshot, nil, rand.New(rand.NewSource(2)))
	players, err := pool2.EnsurePopulation(context.Background(), 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 8 {
		t.Fatalf("expected 8 players, got %d", len(players))
	}
	if len(registrar.registered) != 5 {
		t.Errorf("expected 5 new registrations, got %d", len(registrar.registered))
	}
}

func TestEnsurePopulationStopsOnRegistrationFailure(t *testing.T) {
	registrar := newFakeRegistrar()
	registrar.err = errors.New("backend down")
	pool := New(registrar, testSnapshot(t), nil, rand.New(rand.NewSource(1)))

	if _, err := pool.EnsurePopulation(context.Background(), 5); err == nil {
		t.Fatal("expected registration failure to surface")
	}
}

func TestSamplePairDistinct(t *testing.T) {
	pool := New(newFakeRegistrar(), testSnapshot(t), nil, rand.New(rand.NewSource(3)))
	if _, err := pool.EnsurePopulation(context.Background(), 5); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 200; i++ {
		a, b := pool.SamplePair()
		if a.ID == b.ID {
			t.Fatalf("sampled the same player twice: %s", a.ID)
		}
	}
}

func TestSamplePairSynthesizesWhenTooSmall(t *testing.T) {
	pool := New(newFakeRegistrar(), nil, nil, rand.New(rand.NewSource(4)))

	a, b := pool.SamplePair()
	if a.ID == "" || b.ID == "" || a.ID == b.ID {
		t.Fatalf("expected two distinct ephemeral players, got %q and %q", a.ID, b.ID)
	}
	if pool.Size() != 0 {
		t.Errorf("ephemeral players must not join the population, size %d", pool.Size())
	}
}

func idsOf(players []Player) []string {
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	sort.Strings(ids)
	return ids
}
