package proofs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long cached proof lists stay fresh.
const DefaultCacheTTL = 5 * time.Minute

// CachedSource is a Redis read-through cache in front of another Source.
// Redis failures are logged and fall through to the wrapped source.
type CachedSource struct {
	client redis.Cmdable
	next   Source
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// CacheConfig configures a CachedSource.
type CacheConfig struct {
	TTL       time.Duration
	KeyPrefix string
	Logger    *slog.Logger
}

// NewCachedSource wraps next with a Redis cache.
func NewCachedSource(client redis.Cmdable, next Source, cfg CacheConfig) *CachedSource {
	c := &CachedSource{
		client: client,
		next:   next,
		ttl:    cfg.TTL,
		prefix: cfg.KeyPrefix,
		logger: cfg.Logger,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultCacheTTL
	}
	if c.prefix == "" {
		c.prefix = "hubstore:proofs:"
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Proofs implements Source.
func (c *CachedSource) Proofs(ctx context.Context, address string) ([]Proof, error) {
	key := c.prefix + address

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var list []Proof
		if jsonErr := json.Unmarshal([]byte(cached), &list); jsonErr == nil {
			return list, nil
		}
		c.logger.Warn("discarding corrupt proof cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("proof cache read failed", "key", key, "error", err)
	}

	list, err := c.next.Proofs(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("cached proofs: %w", err)
	}

	if list == nil {
		list = []Proof{}
	}
	if encoded, jsonErr := json.Marshal(list); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.Warn("proof cache write failed", "key", key, "error", setErr)
		}
	}

	return list, nil
}

// Invalidate drops the cached proofs for address.
func (c *CachedSource) Invalidate(ctx context.Context, address string) error {
	if err := c.client.Del(ctx, c.prefix+address).Err(); err != nil {
		return fmt.Errorf("invalidate proofs %s: %w", address, err)
	}
	return nil
}
