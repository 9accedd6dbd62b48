package geocache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
)

const redisKeyPrefix = "locator:geocode:"

// NewRedis caches results in Redis with the given TTL so several service
// instances share lookups. Redis failures fall through to the inner geocoder.
func NewRedis(inner domain.Geocoder, client redis.UniversalClient, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *CachedGeocoder {
	return newCachedGeocoder(inner, &redisCache{client: client, ttl: ttl}, metrics, logger)
}

type redisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func (c *redisCache) get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (c *redisCache) set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, redisKeyPrefix+key, value, c.ttl).Err()
}
