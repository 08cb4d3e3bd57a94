package rating

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Store is the remote side of the cache: fetches and persists ratings.
// Implemented by gameapi.Client.
type Store interface {
	GetRating(ctx context.Context, playerID string) (int, error)
	UpdateRating(ctx context.Context, playerID string, elo int) error
}

// Cache is a read-through cache of last known ratings, shared by all running
// matches. It is never authoritative: entries are safe to evict and
// re-fetch at any time.
type Cache struct {
	store Store
	log   *zap.SugaredLogger

	mu      sync.Mutex
	ratings map[string]int
}

func NewCache(store Store, log *zap.SugaredLogger) *Cache {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Cache{
		store:   store,
		log:     log,
		ratings: make(map[string]int),
	}
}

// Get returns the player's last known rating, fetching through the store on
// a miss. A failed fetch yields DefaultRating rather than failing the
// caller; the miss is logged and not cached.
func (c *Cache) Get(ctx context.Context, playerID string) int {
	c.mu.Lock()
	if cached, ok := c.ratings[playerID]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	fetched, err := c.store.GetRating(ctx, playerID)
	if err != nil {
		c.log.Warnw("rating fetch failed, using default", "player", playerID, "default", DefaultRating, "error", err)
		return DefaultRating
	}

	c.mu.Lock()
	c.ratings[playerID] = fetched
	c.mu.Unlock()
	return fetched
}

// Set persists the rating remotely and only then updates the cache. On a
// failed write the cache is left unchanged and the error is returned; the
// rating change is simply lost (at-most-once).
func (c *Cache) Set(ctx context.Context, playerID string, elo int) error {
	if err := c.store.UpdateRating(ctx, playerID, elo); err != nil {
		return err
	}
	c.mu.Lock()
	c.ratings[playerID] = elo
	c.mu.Unlock()
	return nil
}

// Evict drops a cached entry, forcing the next Get to re-fetch.
func (c *Cache) Evict(playerID string) {
	c.mu.Lock()
	delete(c.ratings, playerID)
	c.mu.Unlock()
}
