// Package weather serves current conditions with a cache-aside store in
// front of a single upstream provider.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Cache answers weather lookups for a (lat, lon, city) tuple with at most
// one upstream fetch per TTL window per city. Two concurrent misses for
// the same city may both fetch and both insert; last write wins, which is
// acceptable because weather is idempotent within the window.
type Cache struct {
	store    SampleStore
	provider Provider
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewCache creates a Cache. A non-positive ttl falls back to SampleTTL,
// a nil logger to slog.Default.
func NewCache(store SampleStore, provider Provider, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = SampleTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:    store,
		provider: provider,
		ttl:      ttl,
		logger:   logger.With("component", "weather"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Current returns the weather for the given coordinates and city label.
// A fresh cached sample whose stored city matches is served as-is; a
// city-mismatched sample for the slot is evicted before refetching.
// Upstream failure returns an error the caller must degrade on, never a
// stale cross-city sample.
func (c *Cache) Current(ctx context.Context, lat, lon float64, city string) (*Sample, error) {
	cached, err := c.store.Latest(ctx, city)
	switch {
	case err == nil:
		if cached.City == city && cached.Valid(c.now(), c.ttl) {
			return &cached, nil
		}
		if cached.City != city {
			// Cross-location staleness must never be served.
			if evictErr := c.store.Evict(ctx, city); evictErr != nil {
				c.logger.Error("evict mismatched sample", "city", city, "error", evictErr)
			}
		}
	case !errors.Is(err, ErrNoSample):
		c.logger.Error("sample lookup failed", "city", city, "error", err)
	}

	fresh, err := c.provider.Fetch(ctx, lat, lon)
	if err != nil {
		c.logger.Error("upstream weather fetch failed", "city", city, "error", err)
		return nil, fmt.Errorf("fetch weather for %s: %w", city, err)
	}

	fresh.City = city
	if fresh.Timestamp.IsZero() {
		fresh.Timestamp = c.now()
	}

	if err := c.store.Put(ctx, fresh); err != nil {
		// A failed cache write is not fatal; the sample is still usable.
		c.logger.Error("save weather sample failed", "city", city, "error", err)
	}

	return &fresh, nil
}

// PruneExpired removes samples older than the TTL window. Intended for
// the periodic janitor; correctness never depends on it.
func (c *Cache) PruneExpired(ctx context.Context) (int, error) {
	return c.store.PruneExpired(ctx, c.now().Add(-c.ttl))
}
