// Package cache provides a Redis-backed cache for registry lookup
// responses. Lookups against the OFData registry are rate limited and
// quota bound, so answers are kept for a configurable TTL and served
// from Redis before a new task is ever queued.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a cached lookup stays valid when no TTL is
// configured. Registry data changes slowly; a day keeps quota usage
// low without serving stale records for long.
const DefaultTTL = 24 * time.Hour

// LookupCache stores raw registry responses keyed by lookup kind and
// taxpayer number. The caller owns the Redis client lifecycle.
type LookupCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a LookupCache on top of an existing Redis client.
// A non-positive ttl falls back to DefaultTTL. If logger is nil,
// the default logger is used.
func New(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) (*LookupCache, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LookupCache{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "lookup_cache")),
	}, nil
}

// Key builds the cache key for one lookup. Kind is the lookup kind
// ("company" or "entrepreneur") and inn the taxpayer number.
func Key(kind, inn string) string {
	return "ofdata:" + kind + ":" + inn
}

// Get returns the cached payload for the given lookup, or found=false
// on a cache miss. Errors other than a miss are returned to the caller,
// which is expected to treat them as a miss and continue to the
// provider.
func (c *LookupCache) Get(ctx context.Context, kind, inn string) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, Key(kind, inn)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read lookup cache: %w", err)
	}
	return payload, true, nil
}

// Set stores the payload for the given lookup with the configured TTL.
func (c *LookupCache) Set(ctx context.Context, kind, inn string, payload []byte) error {
	if err := c.client.Set(ctx, Key(kind, inn), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write lookup cache: %w", err)
	}
	return nil
}

// Invalidate removes one cached lookup. Missing keys are not an error.
func (c *LookupCache) Invalidate(ctx context.Context, kind, inn string) error {
	if err := c.client.Del(ctx, Key(kind, inn)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate lookup cache: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection is alive. Called once at startup
// so a misconfigured cache address fails fast instead of degrading
// every lookup.
func (c *LookupCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// TTL returns the configured entry lifetime.
func (c *LookupCache) TTL() time.Duration {
	return c.ttl
}
