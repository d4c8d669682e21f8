package service

import (
	"context"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
)

// WalletConfig carries the tunables the wallet manager needs.
type WalletConfig struct {
	// BalanceDriftWei is the minimum observed difference before the cached
	// balance is rewritten. Avoids a document write per negligible drift.
	BalanceDriftWei *big.Int
	TokenContract   string
}

type walletService struct {
	store   ports.AccountStore
	custody ports.CustodyService
	cipher  ports.ShareCipher
	ledger  ports.LedgerClient
	audit   ports.AuditService
	cfg     WalletConfig
	logger  zerolog.Logger

	// createLocks collapses concurrent wallet creations per identity to a
	// single provider interaction.
	createLocks *keyedMutex
	// sessionLocks serializes signing windows per identity.
	sessionLocks *keyedMutex
}

// NewWalletService creates the wallet lifecycle service.
func NewWalletService(
	store ports.AccountStore,
	custody ports.CustodyService,
	cipher ports.ShareCipher,
	ledger ports.LedgerClient,
	audit ports.AuditService,
	cfg WalletConfig,
	logger zerolog.Logger,
) ports.WalletService {
	if cfg.BalanceDriftWei == nil {
		cfg.BalanceDriftWei = new(big.Int)
	}
	return &walletService{
		store:        store,
		custody:      custody,
		cipher:       cipher,
		ledger:       ledger,
		audit:        audit,
		cfg:          cfg,
		logger:       logger.With().Str("component", "wallet_service").Logger(),
		createLocks:  newKeyedMutex(),
		sessionLocks: newKeyedMutex(),
	}
}

// CreateWallet is idempotent per identity. The account must already exist;
// registration creates accounts, not this path.
func (s *walletService) CreateWallet(ctx context.Context, identity string) (*ports.WalletCreateResult, error) {
	unlock := s.createLocks.Lock(identity)
	defer unlock()

	account, err := s.store.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	if account.HasWallet() {
		return &ports.WalletCreateResult{Account: account, Created: false}, nil
	}

	material, err := s.custody.EnsureWallet(ctx, identity)
	if err != nil {
		return nil, err
	}

	var warnings []string
	envelope, err := s.cipher.Encrypt(material.RawShare)
	if err != nil {
		return nil, err
	}

	account, err = s.store.MutateWallet(ctx, identity, func(a *domain.Account) error {
		if a.HasWallet() {
			return nil // lost the race to another writer, keep theirs
		}
		now := time.Now().UTC()
		a.Wallet = &domain.Wallet{
			CustodyID:      material.CustodyID,
			ChainAddress:   material.Address,
			EncryptedShare: envelope,
			Provenance:     material.Provenance,
			DegradedReason: material.DegradedReason,
			CachedBalance:  "0",
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := domain.AuditActionWalletCreated
	if material.Provenance == domain.ProvenanceDegraded {
		action = domain.AuditActionWalletDegraded
		warnings = append(warnings, "wallet persisted in degraded custody state: "+material.DegradedReason)
	}
	s.audit.Record(ctx, identity, action, account.Wallet.ChainAddress, map[string]string{
		"custody_id": account.Wallet.CustodyID,
		"provenance": string(account.Wallet.Provenance),
	})

	s.logger.Info().Str("identity", identity).Str("address", account.Wallet.ChainAddress).
		Str("provenance", string(account.Wallet.Provenance)).Msg("wallet ready")

	return &ports.WalletCreateResult{Account: account, Created: true, Warnings: warnings}, nil
}

// RefreshBalance returns the live ledger balance and opportunistically
// rewrites the cached copy when drift exceeds the configured threshold. The
// returned amount is always the fresh observation.
func (s *walletService) RefreshBalance(ctx context.Context, identity string) (*domain.BalanceRefresh, error) {
	account, err := s.store.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !account.HasWallet() {
		return nil, apperror.ErrNoWalletFound()
	}

	live, err := s.ledger.Balance(ctx, account.Wallet.ChainAddress)
	if err != nil {
		return nil, err
	}

	refresh := &domain.BalanceRefresh{AmountWei: live}

	drift := new(big.Int).Sub(live, account.Wallet.CachedBalanceWei())
	if drift.CmpAbs(s.cfg.BalanceDriftWei) <= 0 {
		return refresh, nil
	}

	if _, err := s.store.MutateWallet(ctx, identity, func(a *domain.Account) error {
		if !a.HasWallet() {
			return apperror.ErrNoWalletFound()
		}
		a.Wallet.CachedBalance = live.String()
		a.Wallet.UpdatedAt = time.Now().UTC()
		return nil
	}); err != nil {
		s.logger.Warn().Err(err).Str("identity", identity).Msg("balance cache update failed")
		refresh.Warnings = append(refresh.Warnings, "cached balance could not be updated")
		return refresh, nil
	}

	refresh.CacheUpdated = true
	return refresh, nil
}

// TokenBalance reads the live token balance for the configured contract.
func (s *walletService) TokenBalance(ctx context.Context, identity string) (*domain.BalanceRefresh, error) {
	account, err := s.store.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !account.HasWallet() {
		return nil, apperror.ErrNoWalletFound()
	}

	live, err := s.ledger.TokenBalance(ctx, s.cfg.TokenContract, account.Wallet.ChainAddress)
	if err != nil {
		return nil, err
	}
	return &domain.BalanceRefresh{AmountWei: live}, nil
}

// WithSession decrypts the wallet share into a session handle that fn owns
// exclusively for the duration of the call. The share is never parked in
// shared state, so concurrent windows for different identities each sign
// with their own material. Calls for the same identity are serialized.
func (s *walletService) WithSession(ctx context.Context, identity string, fn func(account *domain.Account, session *domain.SigningSession) error) error {
	unlock := s.sessionLocks.Lock(identity)
	defer unlock()

	account, err := s.store.GetByIdentity(ctx, identity)
	if err != nil {
		return err
	}
	if !account.HasWallet() {
		return apperror.ErrNoWalletFound()
	}
	if account.Wallet.IsDegraded() {
		return apperror.ErrDegradedWallet()
	}

	share, err := s.cipher.Decrypt(account.Wallet.EncryptedShare)
	if err != nil {
		s.audit.Record(ctx, identity, domain.AuditActionSessionRecover, account.Wallet.ChainAddress, map[string]string{
			"outcome": "decryption_failed",
		})
		return err
	}

	return fn(account, domain.NewSigningSession(share))
}
