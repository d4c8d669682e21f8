package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/internal/core/ports/mocks"
	"custodial-wallet-service/pkg/apperror"
)

type walletServiceMocks struct {
	store   *mocks.MockAccountStore
	custody *mocks.MockCustodyService
	cipher  *mocks.MockShareCipher
	ledger  *mocks.MockLedgerClient
	audit   *mocks.MockAuditService
}

func newWalletService(t *testing.T, cfg WalletConfig) (ports.WalletService, walletServiceMocks) {
	ctrl := gomock.NewController(t)
	m := walletServiceMocks{
		store:   mocks.NewMockAccountStore(ctrl),
		custody: mocks.NewMockCustodyService(ctrl),
		cipher:  mocks.NewMockShareCipher(ctrl),
		ledger:  mocks.NewMockLedgerClient(ctrl),
		audit:   mocks.NewMockAuditService(ctrl),
	}
	svc := NewWalletService(m.store, m.custody, m.cipher, m.ledger, m.audit, cfg, zerolog.Nop())
	return svc, m
}

func activeAccount(identity string) *domain.Account {
	return &domain.Account{
		SequenceID:  1,
		Identity:    identity,
		DisplayName: "Test User",
		Role:        domain.RoleInvestor,
		Status:      domain.AccountStatusActive,
		CreatedAt:   time.Now().UTC(),
	}
}

func walletAccount(identity string) *domain.Account {
	a := activeAccount(identity)
	a.Wallet = &domain.Wallet{
		CustodyID:      "cust-1",
		ChainAddress:   "0xabc",
		EncryptedShare: domain.ShareEnvelope{Ciphertext: "aa", Nonce: "bb", Tag: "cc"},
		Provenance:     domain.ProvenanceGenuine,
		CachedBalance:  "1000000000000000000",
	}
	return a
}

const testIdentity = "+84901234567"

func TestCreateWalletIdempotent(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{})
	ctx := context.Background()

	// No custody, cipher, or provider expectations: the fast path must not
	// touch them.
	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(walletAccount(testIdentity), nil)

	res, err := svc.CreateWallet(ctx, testIdentity)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "0xabc", res.Account.Wallet.ChainAddress)
}

func TestCreateWalletAccountNotFound(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{})
	ctx := context.Background()

	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(nil, apperror.ErrAccountNotFound())

	_, err := svc.CreateWallet(ctx, testIdentity)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ACC_002", appErr.Code)
}

func TestCreateWalletFresh(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{})
	ctx := context.Background()

	envelope := domain.ShareEnvelope{Ciphertext: "ct", Nonce: "nn", Tag: "tt"}

	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(activeAccount(testIdentity), nil)
	m.custody.EXPECT().EnsureWallet(ctx, testIdentity).Return(&domain.WalletMaterial{
		CustodyID:  "cust-1",
		Address:    "0xabc",
		RawShare:   "raw-share",
		Provenance: domain.ProvenanceGenuine,
	}, nil)
	m.cipher.EXPECT().Encrypt("raw-share").Return(envelope, nil)
	m.store.EXPECT().MutateWallet(ctx, testIdentity, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, mutate func(*domain.Account) error) (*domain.Account, error) {
			a := activeAccount(testIdentity)
			require.NoError(t, mutate(a))
			return a, nil
		})
	m.audit.EXPECT().Record(ctx, testIdentity, domain.AuditActionWalletCreated, "0xabc", gomock.Any())

	res, err := svc.CreateWallet(ctx, testIdentity)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, envelope, res.Account.Wallet.EncryptedShare)
	assert.Equal(t, domain.ProvenanceGenuine, res.Account.Wallet.Provenance)
	assert.False(t, res.Account.Wallet.CreatedAt.IsZero())
}

func TestCreateWalletDegradedCarriesWarning(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{})
	ctx := context.Background()

	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(activeAccount(testIdentity), nil)
	m.custody.EXPECT().EnsureWallet(ctx, testIdentity).Return(&domain.WalletMaterial{
		CustodyID:      "wallet-84901234567",
		Address:        "0x0000000000000000000000000000084901234567",
		RawShare:       "UNRECOVERABLE-SHARE",
		Provenance:     domain.ProvenanceDegraded,
		DegradedReason: "existing provider wallet with no retrievable share",
	}, nil)
	m.cipher.EXPECT().Encrypt(gomock.Any()).Return(domain.ShareEnvelope{Ciphertext: "ct", Nonce: "nn", Tag: "tt"}, nil)
	m.store.EXPECT().MutateWallet(ctx, testIdentity, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, mutate func(*domain.Account) error) (*domain.Account, error) {
			a := activeAccount(testIdentity)
			require.NoError(t, mutate(a))
			return a, nil
		})
	m.audit.EXPECT().Record(ctx, testIdentity, domain.AuditActionWalletDegraded, gomock.Any(), gomock.Any())

	res, err := svc.CreateWallet(ctx, testIdentity)
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "degraded")
	assert.True(t, res.Account.Wallet.IsDegraded())
}

func TestCreateWalletConcurrentCallsSingleProviderInteraction(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{})

	var mu sync.Mutex
	current := activeAccount(testIdentity)

	m.store.EXPECT().GetByIdentity(gomock.Any(), testIdentity).DoAndReturn(
		func(context.Context, string) (*domain.Account, error) {
			mu.Lock()
			defer mu.Unlock()
			cp := *current
			return &cp, nil
		}).AnyTimes()
	m.store.EXPECT().MutateWallet(gomock.Any(), testIdentity, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, mutate func(*domain.Account) error) (*domain.Account, error) {
			mu.Lock()
			defer mu.Unlock()
			if err := mutate(current); err != nil {
				return nil, err
			}
			cp := *current
			return &cp, nil
		}).AnyTimes()

	// Exactly one custody interaction regardless of caller count.
	m.custody.EXPECT().EnsureWallet(gomock.Any(), testIdentity).Return(&domain.WalletMaterial{
		CustodyID:  "cust-1",
		Address:    "0xabc",
		RawShare:   "raw-share",
		Provenance: domain.ProvenanceGenuine,
	}, nil).Times(1)
	m.cipher.EXPECT().Encrypt("raw-share").Return(domain.ShareEnvelope{Ciphertext: "ct", Nonce: "nn", Tag: "tt"}, nil).Times(1)
	m.audit.EXPECT().Record(gomock.Any(), testIdentity, domain.AuditActionWalletCreated, gomock.Any(), gomock.Any()).Times(1)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*ports.WalletCreateResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.CreateWallet(context.Background(), testIdentity)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "0xabc", results[i].Account.Wallet.ChainAddress)
		if results[i].Created {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestRefreshBalanceWithinDriftSkipsWrite(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{BalanceDriftWei: big.NewInt(1000)})
	ctx := context.Background()

	account := walletAccount(testIdentity)
	live := new(big.Int).Add(account.Wallet.CachedBalanceWei(), big.NewInt(500))

	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(account, nil)
	m.ledger.EXPECT().Balance(ctx, "0xabc").Return(live, nil)
	// No MutateWallet expectation: drift below threshold must not write.

	res, err := svc.RefreshBalance(ctx, testIdentity)
	require.NoError(t, err)
	assert.Equal(t, live, res.AmountWei)
	assert.False(t, res.CacheUpdated)
	assert.Empty(t, res.Warnings)
}

func TestRefreshBalanceBeyondDriftUpdatesCache(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{BalanceDriftWei: big.NewInt(1000)})
	ctx := context.Background()

	account := walletAccount(testIdentity)
	live := new(big.Int).Sub(account.Wallet.CachedBalanceWei(), big.NewInt(5000))

	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(account, nil)
	m.ledger.EXPECT().Balance(ctx, "0xabc").Return(live, nil)
	m.store.EXPECT().MutateWallet(ctx, testIdentity, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, mutate func(*domain.Account) error) (*domain.Account, error) {
			a := walletAccount(testIdentity)
			require.NoError(t, mutate(a))
			assert.Equal(t, live.String(), a.Wallet.CachedBalance)
			return a, nil
		})

	res, err := svc.RefreshBalance(ctx, testIdentity)
	require.NoError(t, err)
	assert.Equal(t, live, res.AmountWei)
	assert.True(t, res.CacheUpdated)
}

func TestRefreshBalanceCacheWriteFailureIsWarning(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{BalanceDriftWei: big.NewInt(0)})
	ctx := context.Background()

	account := walletAccount(testIdentity)
	live := new(big.Int).Add(account.Wallet.CachedBalanceWei(), big.NewInt(1))

	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(account, nil)
	m.ledger.EXPECT().Balance(ctx, "0xabc").Return(live, nil)
	m.store.EXPECT().MutateWallet(ctx, testIdentity, gomock.Any()).Return(nil, errors.New("write conflict"))

	res, err := svc.RefreshBalance(ctx, testIdentity)
	require.NoError(t, err, "live observation still succeeds")
	assert.Equal(t, live, res.AmountWei)
	assert.False(t, res.CacheUpdated)
	require.Len(t, res.Warnings, 1)
}

func TestRefreshBalanceNoWallet(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{})
	ctx := context.Background()

	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(activeAccount(testIdentity), nil)

	_, err := svc.RefreshBalance(ctx, testIdentity)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WAL_001", appErr.Code)
}

func TestTokenBalance(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{TokenContract: "0xdac17f958d2ee523a2206206994597c13d831ec7"})
	ctx := context.Background()

	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(walletAccount(testIdentity), nil)
	m.ledger.EXPECT().TokenBalance(ctx, "0xdac17f958d2ee523a2206206994597c13d831ec7", "0xabc").
		Return(big.NewInt(12345678), nil)

	res, err := svc.TokenBalance(ctx, testIdentity)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(12345678), res.AmountWei)
	assert.False(t, res.CacheUpdated)
}

func TestWithSessionHandsShareToCallback(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{})
	ctx := context.Background()

	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(walletAccount(testIdentity), nil)
	m.cipher.EXPECT().Decrypt(domain.ShareEnvelope{Ciphertext: "aa", Nonce: "bb", Tag: "cc"}).Return("raw-share", nil)

	ran := false
	err := svc.WithSession(ctx, testIdentity, func(a *domain.Account, session *domain.SigningSession) error {
		ran = true
		assert.Equal(t, "0xabc", a.Wallet.ChainAddress)
		assert.Equal(t, "raw-share", session.Share())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithSessionPropagatesCallbackError(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{})
	ctx := context.Background()

	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(walletAccount(testIdentity), nil)
	m.cipher.EXPECT().Decrypt(gomock.Any()).Return("raw-share", nil)

	boom := errors.New("submission failed")
	err := svc.WithSession(ctx, testIdentity, func(*domain.Account, *domain.SigningSession) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestWithSessionDegradedWalletRejected(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{})
	ctx := context.Background()

	account := walletAccount(testIdentity)
	account.Wallet.Provenance = domain.ProvenanceDegraded

	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(account, nil)
	// No decrypt, no session load: placeholder material never reaches the
	// provider.

	err := svc.WithSession(ctx, testIdentity, func(*domain.Account, *domain.SigningSession) error {
		t.Fatal("fn must not run for a degraded wallet")
		return nil
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TRX_004", appErr.Code)
}

func TestWithSessionDecryptionFailure(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{})
	ctx := context.Background()

	m.store.EXPECT().GetByIdentity(ctx, testIdentity).Return(walletAccount(testIdentity), nil)
	m.cipher.EXPECT().Decrypt(gomock.Any()).Return("", apperror.ErrDecryptionFailed(errors.New("message authentication failed")))
	m.audit.EXPECT().Record(ctx, testIdentity, domain.AuditActionSessionRecover, "0xabc", gomock.Any())

	err := svc.WithSession(ctx, testIdentity, func(*domain.Account, *domain.SigningSession) error {
		t.Fatal("fn must not run when the share cannot be decrypted")
		return nil
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WAL_003", appErr.Code)
}

func TestWithSessionSerializedPerIdentity(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{})

	m.store.EXPECT().GetByIdentity(gomock.Any(), testIdentity).Return(walletAccount(testIdentity), nil).Times(2)
	m.cipher.EXPECT().Decrypt(gomock.Any()).Return("raw-share", nil).Times(2)

	var mu sync.Mutex
	inSession := 0
	maxInSession := 0

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.WithSession(context.Background(), testIdentity, func(*domain.Account, *domain.SigningSession) error {
				mu.Lock()
				inSession++
				if inSession > maxInSession {
					maxInSession = inSession
				}
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				inSession--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInSession, "signing windows for one identity must not overlap")
}

func TestWithSessionIsolatedAcrossIdentities(t *testing.T) {
	svc, m := newWalletService(t, WalletConfig{})

	identityA := "+84901111111"
	identityB := "+84902222222"

	accountA := walletAccount(identityA)
	accountA.Wallet.EncryptedShare = domain.ShareEnvelope{Ciphertext: "ea", Nonce: "na", Tag: "ta"}
	accountB := walletAccount(identityB)
	accountB.Wallet.EncryptedShare = domain.ShareEnvelope{Ciphertext: "eb", Nonce: "nb", Tag: "tb"}

	m.store.EXPECT().GetByIdentity(gomock.Any(), identityA).Return(accountA, nil)
	m.store.EXPECT().GetByIdentity(gomock.Any(), identityB).Return(accountB, nil)
	m.cipher.EXPECT().Decrypt(accountA.Wallet.EncryptedShare).Return("share-a", nil)
	m.cipher.EXPECT().Decrypt(accountB.Wallet.EncryptedShare).Return("share-b", nil)

	// Force the two windows to overlap: A enters its session, holds it open
	// until B has entered too, then both read their shares.
	aInside := make(chan struct{})
	bInside := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		err := svc.WithSession(context.Background(), identityA, func(_ *domain.Account, session *domain.SigningSession) error {
			close(aInside)
			<-bInside
			assert.Equal(t, "share-a", session.Share())
			return nil
		})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		<-aInside
		err := svc.WithSession(context.Background(), identityB, func(_ *domain.Account, session *domain.SigningSession) error {
			close(bInside)
			assert.Equal(t, "share-b", session.Share())
			return nil
		})
		assert.NoError(t, err)
	}()
	wg.Wait()
}
