package rating

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	ratings    map[string]int
	fetchErr   error
	writeErr   error
	fetchCount int
	writes     map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ratings: make(map[string]int),
		writes:  make(map[string]int),
	}
}

func (f *fakeStore) GetRating(ctx context.Context, playerID string) (int, error) {
	f.fetchCount++
	if f.fetchErr != nil {
		return 0, f.fetchErr
	}
	elo, ok := f.ratings[playerID]
	if !ok {
		return 0, errors.New("unknown player")
	}
	return elo, nil
}

func (f *fakeStore) UpdateRating(ctx context.Context, playerID string, elo int) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes[playerID] = elo
	return nil
}

func TestGetReadsThroughOnce(t *testing.T) {
	store := newFakeStore()
	store.ratings["p-1"] = 1150
	cache := NewCache(store, nil)

	if got := cache.Get(context.Background(), "p-1"); got != 1150 {
		t.Fatalf("expected 1150, got %d", got)
	}
	if got := cache.Get(context.Background(), "p-1"); got != 1150 {
		t.Fatalf("expected cached 1150, got %d", got)
	}
	if store.fetchCount != 1 {
		t.Errorf("expected one remote fetch, got %d", store.fetchCount)
	}
}

func TestGetFallsBackToDefaultOnFetchFailure(t *testing.T) {
	store := newFakeStore()
	store.fetchErr = errors.New("backend down")
	cache := NewCache(store, nil)

	if got := cache.Get(context.Background(), "p-1"); got != DefaultRating {
		t.Fatalf("expected default %d, got %d", DefaultRating, got)
	}

	// Failure must not be cached: once the backend recovers the real
	// rating is fetched.
	store.fetchErr = nil
	store.ratings["p-1"] = 1090
	if got := cache.Get(context.Background(), "p-1"); got != 1090 {
		t.Fatalf("expected re-fetch after failure, got %d", got)
	}
}

func TestSetCachesOnlyAfterAck(t *testing.T) {
	store := newFakeStore()
	store.ratings["p-1"] = 1000
	cache := NewCache(store, nil)
	_ = cache.Get(context.Background(), "p-1")

	store.writeErr = errors.New("write refused")
	if err := cache.Set(context.Background(), "p-1", 1016); err == nil {
		t.Fatal("expected write failure to surface")
	}
	if got := cache.Get(context.Background(), "p-1"); got != 1000 {
		t.Fatalf("failed write must leave cache unchanged, got %d", got)
	}

	store.writeErr = nil
	if err := cache.Set(context.Background(), "p-1", 1016); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := cache.Get(context.Background(), "p-1"); got != 1016 {
		t.Fatalf("acknowledged write not cached, got %d", got)
	}
	if store.writes["p-1"] != 1016 {
		t.Errorf("remote write missing: %v", store.writes)
	}
}

func TestEvictForcesRefetch(t *testing.T) {
	store := newFakeStore()
	store.ratings["p-1"] = 1000
	cache := NewCache(store, nil)
	_ = cache.Get(context.Background(), "p-1")

	store.ratings["p-1"] = 1200
	cache.Evict("p-1")
	if got := cache.Get(context.Background(), "p-1"); got != 1200 {
		t.Fatalf("expected re-fetch after evict, got %d", got)
	}
}
