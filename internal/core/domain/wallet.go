package domain

import (
	"math/big"
	"time"
)

// Provenance distinguishes genuine custody material from reconciliation
// placeholders persisted when the provider had a wallet but no retrievable
// share.
type Provenance string

const (
	ProvenanceGenuine  Provenance = "genuine"
	ProvenanceDegraded Provenance = "degraded"
)

// ShareEnvelope is the authenticated-encryption envelope protecting the
// user key share at rest. All fields are hex-encoded. The plaintext share
// exists only transiently in memory.
type ShareEnvelope struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
	Tag        string `json:"tag"`
}

// IsZero reports whether the envelope is empty.
func (e ShareEnvelope) IsZero() bool {
	return e.Ciphertext == "" && e.Nonce == "" && e.Tag == ""
}

// Wallet is the custodial wallet record embedded in an Account. A wallet has
// no lifecycle independent of its owner: created once, mutated in place by
// balance refreshes and nonce bumps, never moved to another identity.
type Wallet struct {
	CustodyID    string        `json:"custody_id"`
	ChainAddress string        `json:"chain_address"`
	// EncryptedShare is present if and only if ChainAddress is present.
	EncryptedShare ShareEnvelope `json:"encrypted_share"`
	Provenance     Provenance    `json:"provenance"`
	DegradedReason string        `json:"degraded_reason,omitempty"`
	// Nonce is the last known transfer sequence number. Advisory only; the
	// ledger nonce is authoritative for signing.
	Nonce uint64 `json:"nonce"`
	// CachedBalance is the last observed balance in wei, as a decimal
	// string. Never trusted for transfer validation; every transfer
	// re-queries the ledger.
	CachedBalance string    `json:"cached_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CachedBalanceWei parses the cached balance; a missing or malformed value
// is reported as zero.
func (w *Wallet) CachedBalanceWei() *big.Int {
	if w.CachedBalance == "" {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(w.CachedBalance, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

// IsDegraded reports whether the wallet holds placeholder custody material.
func (w *Wallet) IsDegraded() bool {
	return w.Provenance == ProvenanceDegraded
}

// SigningSession is the exclusively owned handle to a decrypted user share.
// One is created per signing window and handed to exactly one caller; the
// share never lives in shared mutable state.
type SigningSession struct {
	share string
}

// NewSigningSession wraps a decrypted share for a single signing window.
func NewSigningSession(share string) *SigningSession {
	return &SigningSession{share: share}
}

// Share exposes the raw share for the custody sign call.
func (s *SigningSession) Share() string {
	return s.share
}

// WalletMaterial is the result of ensuring a wallet exists at the custody
// provider: the identifiers plus the raw (plaintext) share to be encrypted
// and persisted by the Wallet Manager.
type WalletMaterial struct {
	CustodyID      string
	Address        string
	RawShare       string
	Provenance     Provenance
	DegradedReason string
}
