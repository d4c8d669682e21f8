package integration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"custodial-wallet-service/internal/core/domain"
)

// stubCustodyProvider is an in-process stand-in for the external MPC custody
// provider. It hands out deterministic addresses and shares, and can be
// switched into a failing mode to exercise outage handling.
type stubCustodyProvider struct {
	mu          sync.Mutex
	wallets     map[string]stubWallet // identity -> wallet
	signedWith  map[string][]string   // from address -> shares used to sign
	failing     bool
	shareless   bool // provider has wallets but can never return a share
	createCalls atomic.Int64
	signCalls   atomic.Int64
}

type stubWallet struct {
	custodyID string
	address   string
	share     string
}

func newStubCustodyProvider() *stubCustodyProvider {
	return &stubCustodyProvider{
		wallets:    make(map[string]stubWallet),
		signedWith: make(map[string][]string),
	}
}

func (p *stubCustodyProvider) setFailing(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing = v
}

func (p *stubCustodyProvider) setShareless(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shareless = v
}

// seedWallet registers a provider-side wallet without a local account record,
// simulating state left behind by a previous partial failure.
func (p *stubCustodyProvider) seedWallet(identity, custodyID, address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wallets[identity] = stubWallet{custodyID: custodyID, address: address}
}

func (p *stubCustodyProvider) HasWallet(_ context.Context, identity string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing {
		return false, errors.New("custody provider unreachable")
	}
	_, ok := p.wallets[identity]
	return ok, nil
}

func (p *stubCustodyProvider) CreateWallet(_ context.Context, identity string) (string, string, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing {
		return "", "", "", errors.New("custody provider unreachable")
	}
	p.createCalls.Add(1)

	w, ok := p.wallets[identity]
	if !ok {
		sum := sha256.Sum256([]byte(identity))
		w = stubWallet{
			custodyID: "cust-" + hex.EncodeToString(sum[:4]),
			address:   "0x" + hex.EncodeToString(sum[:20]),
			share:     "share-" + identity,
		}
		p.wallets[identity] = w
	}
	if p.shareless {
		return w.custodyID, w.address, "", nil
	}
	if w.share == "" {
		w.share = "share-" + identity
		p.wallets[identity] = w
	}
	return w.custodyID, w.address, w.share, nil
}

func (p *stubCustodyProvider) SignAndSend(_ context.Context, share string, tx *domain.UnsignedTx) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing {
		return "", errors.New("custody provider unreachable")
	}
	if share == "" {
		return "", errors.New("no signing share provided")
	}
	p.signedWith[tx.From] = append(p.signedWith[tx.From], share)
	n := p.signCalls.Add(1)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", tx.From, tx.Nonce, n)))
	return "0x" + hex.EncodeToString(sum[:]), nil
}

// sharesUsed reports every share SignAndSend received for a from address.
func (p *stubCustodyProvider) sharesUsed(from string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.signedWith[from]...)
}

// stubLedger is an in-memory ledger RPC. With autoMine enabled every
// submitted hash is immediately reported as confirmed.
type stubLedger struct {
	mu            sync.Mutex
	balances      map[string]*big.Int
	tokenBalances map[string]*big.Int
	nonces        map[string]uint64
	gasPrice      *big.Int
	chainID       int64
	autoMine      bool
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		balances:      make(map[string]*big.Int),
		tokenBalances: make(map[string]*big.Int),
		nonces:        make(map[string]uint64),
		gasPrice:      big.NewInt(1_000_000_000), // 1 gwei
		chainID:       97,
		autoMine:      true,
	}
}

func (l *stubLedger) setBalance(address string, wei *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] = new(big.Int).Set(wei)
}

func (l *stubLedger) setTokenBalance(address string, units *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokenBalances[address] = new(big.Int).Set(units)
}

func (l *stubLedger) setAutoMine(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.autoMine = v
}

func (l *stubLedger) Balance(_ context.Context, address string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[address]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (l *stubLedger) TokenBalance(_ context.Context, _ string, address string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.tokenBalances[address]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (l *stubLedger) GasPrice(_ context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.gasPrice), nil
}

func (l *stubLedger) PendingNonce(_ context.Context, address string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.nonces[address]
	l.nonces[address] = n + 1
	return n, nil
}

func (l *stubLedger) Receipt(_ context.Context, _ string) (*domain.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.autoMine {
		return nil, nil
	}
	return &domain.Receipt{
		Succeeded:   true,
		BlockNumber: big.NewInt(100),
		GasUsed:     21000,
	}, nil
}

func (l *stubLedger) ChainID(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chainID, nil
}
