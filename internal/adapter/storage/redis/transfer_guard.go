package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TransferGuard implements ports.TransferGuard using Redis SET NX.
type TransferGuard struct {
	client *goredis.Client
	prefix string
}

// NewTransferGuard creates a new Redis-backed transfer guard.
func NewTransferGuard(client *goredis.Client) *TransferGuard {
	return &TransferGuard{
		client: client,
		prefix: "transfer:",
	}
}

// CheckAndSet atomically records a reference id for an identity.
// Returns true if the reference is new, false if it was already used.
func (g *TransferGuard) CheckAndSet(ctx context.Context, identity string, referenceID string, ttl time.Duration) (bool, error) {
	key := g.prefix + identity + ":" + referenceID
	result, err := g.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists, reference was already used
			return false, nil
		}
		return false, fmt.Errorf("redis transfer guard: %w", err)
	}
	return result == "OK", nil
}

// Release frees a recorded reference id. Used when a transfer is rejected
// before anything reached the ledger, so the caller can retry with the same
// reference.
func (g *TransferGuard) Release(ctx context.Context, identity string, referenceID string) error {
	key := g.prefix + identity + ":" + referenceID
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis transfer guard: %w", err)
	}
	return nil
}
