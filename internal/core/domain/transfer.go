package domain

import (
	"math/big"
	"time"
)

// Asset selects what a transfer moves.
type Asset string

const (
	AssetNative Asset = "native"
	AssetToken  Asset = "token"
)

// TransferStatus is the lifecycle state of a submitted transfer.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusConfirmed TransferStatus = "confirmed"
	TransferStatusFailed    TransferStatus = "failed"
	TransferStatusUnknown   TransferStatus = "unknown"
)

// TransferResult reports the outcome of a transfer submission. It is not
// persisted as its own entity. Warnings carry secondary-path failures (cache
// refresh, advisory nonce bump) that did not affect the submission itself.
type TransferResult struct {
	Hash        string         `json:"hash"`
	From        string         `json:"from"`
	To          string         `json:"to"`
	Asset       Asset          `json:"asset"`
	AmountWei   *big.Int       `json:"-"`
	Amount      string         `json:"amount"` // decimal units for display
	Status      TransferStatus `json:"status"`
	BlockNumber *big.Int       `json:"block_number,omitempty"`
	GasUsed     uint64         `json:"gas_used,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// Receipt is the ledger's view of a mined transaction.
type Receipt struct {
	Succeeded   bool
	BlockNumber *big.Int
	GasUsed     uint64
}

// UnsignedTx is the transaction handed to the custody provider for signing
// and broadcast through the active session.
type UnsignedTx struct {
	From        string
	To          string
	ValueWei    *big.Int
	Data        []byte
	Nonce       uint64
	GasLimit    uint64
	GasPriceWei *big.Int
	ChainID     int64
}

// BalanceRefresh reports a live balance observation and whether the cached
// copy was rewritten. Warnings make cache-write failures explicit instead of
// silently returning the stale record.
type BalanceRefresh struct {
	AmountWei    *big.Int
	CacheUpdated bool
	Warnings     []string
}
