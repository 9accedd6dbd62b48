// Package catalog holds the normalized snapshot of groups that every view is
// computed from, and keeps it in step with the backend store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Source fetches every raw group row with its relations joined.
type Source interface {
	FetchGroups(ctx context.Context) ([]domain.RawRow, error)
}

// Snapshot is one normalized load of the backend.
type Snapshot struct {
	Groups   []domain.Group
	Skipped  []domain.SkippedRow
	LoadedAt time.Time
}

// Catalog serves the latest Snapshot and refreshes it on an interval and on
// demand. Readers never block on a refresh.
type Catalog struct {
	source     Source
	normalizer domain.Normalizer
	interval   time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	refreshMu sync.Mutex
	snap      atomic.Pointer[Snapshot]
	ready     atomic.Bool
}

// New creates a Catalog. A nil clock means the real clock.
func New(source Source, normalizer domain.Normalizer, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Catalog {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Catalog{
		source:     source,
		normalizer: normalizer,
		interval:   interval,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
	c.snap.Store(&Snapshot{})
	return c
}

// Snapshot returns the current snapshot. It is never nil and must not be mutated.
func (c *Catalog) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Groups returns the accepted groups of the current snapshot.
func (c *Catalog) Groups() []domain.Group {
	return c.snap.Load().Groups
}

// Query runs the filter/sort pipeline over the current snapshot.
func (c *Catalog) Query(f domain.FilterState) []domain.Group {
	return domain.Apply(c.Groups(), f)
}

// CheckReadiness returns nil once the first load has succeeded.
func (c *Catalog) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("catalog has not been loaded yet")
	}
	return nil
}

// Refresh fetches and normalizes every row and swaps in the new snapshot.
// On failure the previous snapshot stays in place.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	start := c.clock.Now()
	rows, err := c.source.FetchGroups(ctx)
	if err != nil {
		c.metrics.CatalogRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("fetch groups: %w", err)
	}

	res := c.normalizer.NormalizeAll(rows)
	for _, s := range res.Skipped {
		c.logger.Warn("row skipped", "row_id", s.RowID, "reason", s.Reason)
	}

	c.snap.Store(&Snapshot{Groups: res.Groups, Skipped: res.Skipped, LoadedAt: c.clock.Now()})
	c.ready.Store(true)

	c.metrics.CatalogRefreshes.WithLabelValues("success").Inc()
	c.metrics.CatalogRefreshDuration.Observe(c.clock.Since(start).Seconds())
	c.metrics.CatalogGroups.Set(float64(len(res.Groups)))
	c.metrics.CatalogSkippedRows.Set(float64(len(res.Skipped)))
	c.logger.Info("catalog refreshed", "groups", len(res.Groups), "skipped", len(res.Skipped))
	return nil
}

// Run loads the catalog and keeps it fresh until the context is cancelled.
// Failed loads are retried with exponential backoff.
func (c *Catalog) Run(ctx context.Context) error {
	c.logger.Info("catalog started", "refresh_interval", c.interval)

	backoff := initialBackoff
	for {
		if err := c.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("catalog stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("catalog refresh failed", "error", err, "retry_in", backoff)
			if !c.sleep(ctx, backoff) {
				return nil
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = initialBackoff
		if !c.sleep(ctx, c.interval) {
			c.logger.Info("catalog stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func (c *Catalog) sleep(ctx context.Context, d time.Duration) bool {
	timer := c.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
