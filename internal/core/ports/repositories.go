package ports

import (
	"context"
	"time"

	"custodial-wallet-service/internal/core/domain"
)

// AccountStore defines persistence operations over the account document.
// Implementations must serialize wallet mutations per identity: concurrent
// MutateWallet calls for the same identity are applied one at a time, and a
// lost update is never possible.
type AccountStore interface {
	// CreateAccount assigns the next sequence id and persists the account.
	// Returns apperror ACC_001 when the identity already exists.
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetByIdentity(ctx context.Context, identity string) (*domain.Account, error)
	GetBySequenceID(ctx context.Context, id int64) (*domain.Account, error)
	// MutateWallet loads the account, applies mutate, and persists the result
	// atomically. mutate returning an error aborts without writing.
	MutateWallet(ctx context.Context, identity string, mutate func(*domain.Account) error) (*domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
}

// AuditRepository persists audit events.
type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuditEvent) error
}

// ReceiptCache caches terminal transfer statuses by transaction hash so
// status polls do not hit the ledger RPC repeatedly.
type ReceiptCache interface {
	Get(ctx context.Context, hash string) ([]byte, error) // cached result JSON or nil
	Set(ctx context.Context, hash string, value []byte, ttl time.Duration) error
}

// TransferGuard enforces client reference-id uniqueness so a retried
// submission cannot double-spend.
type TransferGuard interface {
	// CheckAndSet atomically records the reference id. Returns true if it was
	// new, false if a transfer with the same reference was already accepted.
	CheckAndSet(ctx context.Context, identity string, referenceID string, ttl time.Duration) (bool, error)
	// Release frees a recorded reference id so the caller can retry after a
	// rejection that never reached the ledger.
	Release(ctx context.Context, identity string, referenceID string) error
}

// RateLimitStore counts requests per key within a fixed window.
type RateLimitStore interface {
	// Increment bumps the counter for key and returns the new count. The
	// counter expires after window.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}
