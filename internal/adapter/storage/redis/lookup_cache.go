package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// LookupCache implements ports.LookupCache using Redis. It memoizes
// read-mostly catalog and identity lookups.
type LookupCache struct {
	client *goredis.Client
	prefix string
}

// NewLookupCache creates a new Redis-backed lookup cache.
func NewLookupCache(client *goredis.Client) *LookupCache {
	return &LookupCache{
		client: client,
		prefix: "lookup:",
	}
}

// Get retrieves a cached value by key.
// Returns nil, nil if the key does not exist.
func (c *LookupCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis lookup get: %w", err)
	}
	return val, nil
}

// Set stores a value in the lookup cache with TTL.
func (c *LookupCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis lookup set: %w", err)
	}
	return nil
}
