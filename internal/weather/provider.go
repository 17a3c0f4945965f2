package weather

import (
	"context"
	"time"
)

// Provider abstracts the upstream weather source queried on cache misses.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64) (Sample, error)
}

// SampleStore is the contract the sample store must satisfy. Samples are
// keyed by city; Put replaces any existing row for the same city.
type SampleStore interface {
	Latest(ctx context.Context, city string) (Sample, error)
	Put(ctx context.Context, s Sample) error
	Evict(ctx context.Context, city string) error
	PruneExpired(ctx context.Context, cutoff time.Time) (int, error)
}
