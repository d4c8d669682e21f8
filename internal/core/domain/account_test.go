package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountHasWallet(t *testing.T) {
	a := &Account{Identity: "+1234567890", Status: AccountStatusActive}
	assert.False(t, a.HasWallet())

	a.Wallet = &Wallet{}
	assert.False(t, a.HasWallet(), "empty wallet record does not count")

	a.Wallet.ChainAddress = "0xabc"
	assert.True(t, a.HasWallet())
}

func TestAccountIsActive(t *testing.T) {
	a := &Account{Status: AccountStatusActive}
	assert.True(t, a.IsActive())

	a.Status = AccountStatusSuspended
	assert.False(t, a.IsActive())
}

func TestWalletCachedBalanceWei(t *testing.T) {
	w := &Wallet{}
	assert.Equal(t, big.NewInt(0), w.CachedBalanceWei())

	w.CachedBalance = "not-a-number"
	assert.Equal(t, big.NewInt(0), w.CachedBalanceWei())

	w.CachedBalance = "2500000000000000000"
	want, _ := new(big.Int).SetString("2500000000000000000", 10)
	assert.Equal(t, want, w.CachedBalanceWei())
}

func TestWalletIsDegraded(t *testing.T) {
	w := &Wallet{Provenance: ProvenanceGenuine}
	assert.False(t, w.IsDegraded())

	w.Provenance = ProvenanceDegraded
	assert.True(t, w.IsDegraded())
}

func TestShareEnvelopeIsZero(t *testing.T) {
	assert.True(t, ShareEnvelope{}.IsZero())
	assert.False(t, ShareEnvelope{Ciphertext: "ab"}.IsZero())
}
