package geocache

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
)

// NewMemory caches up to maxEntries results in process, evicting the least
// recently used.
func NewMemory(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics, logger *slog.Logger) *CachedGeocoder {
	return newCachedGeocoder(inner, newLRUCache(maxEntries), metrics, logger)
}

// lruCache adapts a size-bounded LRU to the cache backend interface.
type lruCache struct {
	entries *lru.Cache[string, []byte]
}

func newLRUCache(maxEntries int) *lruCache {
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, []byte](max(maxEntries, 1))
	return &lruCache{entries: entries}
}

func (c *lruCache) get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.entries.Get(key)
	return v, ok, nil
}

func (c *lruCache) set(_ context.Context, key string, value []byte) error {
	c.entries.Add(key, value)
	return nil
}

func (c *lruCache) len() int {
	return c.entries.Len()
}
