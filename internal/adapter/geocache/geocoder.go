// Package geocache decorates a domain.Geocoder with a result cache, either an
// in-process LRU or a shared Redis instance.
package geocache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
)

// backend stores encoded results by key.
type backend interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	set(ctx context.Context, key string, value []byte) error
}

// CachedGeocoder wraps a Geocoder with a cache. Only non-empty results are
// cached so transient "not found" responses can be retried.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   backend
	metrics *observability.Metrics
	logger  *slog.Logger
}

func newCachedGeocoder(inner domain.Geocoder, cache backend, metrics *observability.Metrics, logger *slog.Logger) *CachedGeocoder {
	return &CachedGeocoder{inner: inner, cache: cache, metrics: metrics, logger: logger}
}

// Search serves forward lookups from the cache when possible.
func (c *CachedGeocoder) Search(ctx context.Context, query string, limit int) ([]domain.Suggestion, error) {
	key := fmt.Sprintf("fwd:%d:%s", limit, strings.ToLower(strings.TrimSpace(query)))

	var cached []domain.Suggestion
	if c.load(ctx, "forward", key, &cached) {
		return cached, nil
	}
	result, err := c.inner.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(result) > 0 {
		c.store(ctx, key, result)
	}
	return result, nil
}

// Reverse serves reverse lookups from the cache when possible.
func (c *CachedGeocoder) Reverse(ctx context.Context, lat, lon float64) (domain.Suggestion, error) {
	key := fmt.Sprintf("rev:%.6f,%.6f", lat, lon)

	var cached domain.Suggestion
	if c.load(ctx, "reverse", key, &cached) {
		return cached, nil
	}
	result, err := c.inner.Reverse(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	if result.Label != "" {
		c.store(ctx, key, result)
	}
	return result, nil
}

func (c *CachedGeocoder) load(ctx context.Context, method, key string, dst any) bool {
	raw, ok, err := c.cache.get(ctx, key)
	if err != nil {
		c.logger.Warn("geocode cache read failed", "error", err, "key", key)
	}
	if !ok || err != nil {
		c.metrics.GeocodeCache.WithLabelValues(method, "miss").Inc()
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("geocode cache entry unreadable", "error", err, "key", key)
		c.metrics.GeocodeCache.WithLabelValues(method, "miss").Inc()
		return false
	}
	c.metrics.GeocodeCache.WithLabelValues(method, "hit").Inc()
	return true
}

func (c *CachedGeocoder) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.set(ctx, key, raw); err != nil {
		c.logger.Warn("geocode cache write failed", "error", err, "key", key)
	}
}
