// Package janitor prunes expired weather samples on a schedule. The
// cache-aside path never serves a stale sample regardless; pruning only
// keeps the table from accumulating dead rows.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/outfitlab/outfit-gateway/internal/weather"
)

// Janitor runs the periodic prune job.
type Janitor struct {
	scheduler *gocron.Scheduler
	cache     *weather.Cache
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a Janitor pruning through the given cache.
func New(cache *weather.Cache, interval time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		scheduler: gocron.NewScheduler(time.UTC),
		cache:     cache,
		interval:  interval,
		logger:    logger.With("component", "janitor"),
	}
}

// Start schedules the prune job and starts the underlying scheduler.
func (j *Janitor) Start() error {
	minutes := int(j.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := j.scheduler.Every(minutes).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pruned, err := j.cache.PruneExpired(ctx)
		if err != nil {
			j.logger.Error("prune expired samples failed", "error", err)
			return
		}
		if pruned > 0 {
			j.logger.Info("pruned expired weather samples", "count", pruned)
		}
	})
	if err != nil {
		return err
	}

	j.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (j *Janitor) Stop() {
	if j.scheduler != nil {
		j.scheduler.Stop()
	}
}
