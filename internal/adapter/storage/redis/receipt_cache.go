package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReceiptCache implements ports.ReceiptCache using Redis. Only terminal
// transfer statuses are stored; pending results always go back to the
// ledger.
type ReceiptCache struct {
	client *goredis.Client
	prefix string
}

// NewReceiptCache creates a new Redis-backed receipt cache.
func NewReceiptCache(client *goredis.Client) *ReceiptCache {
	return &ReceiptCache{
		client: client,
		prefix: "receipt:",
	}
}

// Get retrieves a cached transfer result by transaction hash.
// Returns nil, nil if the hash is not cached.
func (c *ReceiptCache) Get(ctx context.Context, hash string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+hash).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis receipt get: %w", err)
	}
	return val, nil
}

// Set stores a terminal transfer result with TTL.
func (c *ReceiptCache) Set(ctx context.Context, hash string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+hash, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis receipt set: %w", err)
	}
	return nil
}
