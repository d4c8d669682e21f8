package service

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
)

// erc20TransferSelector is the 4-byte selector of transfer(address,uint256).
var erc20TransferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

// TransferConfig carries the transfer engine tunables.
type TransferConfig struct {
	GasLimit        uint64
	TokenGasLimit   uint64
	ConfirmWait     time.Duration
	ConfirmInterval time.Duration
	GuardTTL        time.Duration
	ReceiptTTL      time.Duration
	TokenContract   string
	TokenDecimals   int
	// ChainID used for signing when > 0; otherwise queried from the ledger.
	ChainID int64
}

type transferService struct {
	store    ports.AccountStore
	wallets  ports.WalletService
	provider ports.CustodyProvider
	ledger   ports.LedgerClient
	guard    ports.TransferGuard
	cache    ports.ReceiptCache
	audit    ports.AuditService
	cfg      TransferConfig
	logger   zerolog.Logger
}

// NewTransferService creates the transfer engine.
func NewTransferService(
	store ports.AccountStore,
	wallets ports.WalletService,
	provider ports.CustodyProvider,
	ledger ports.LedgerClient,
	guard ports.TransferGuard,
	cache ports.ReceiptCache,
	audit ports.AuditService,
	cfg TransferConfig,
	logger zerolog.Logger,
) ports.TransferService {
	return &transferService{
		store:    store,
		wallets:  wallets,
		provider: provider,
		ledger:   ledger,
		guard:    guard,
		cache:    cache,
		audit:    audit,
		cfg:      cfg,
		logger:   logger.With().Str("component", "transfer_service").Logger(),
	}
}

// Transfer validates, signs, and submits a value transfer, then waits a
// bounded time for confirmation. The signing share exists only inside the
// session window and never survives a return, successful or not.
func (s *transferService) Transfer(ctx context.Context, req ports.TransferRequest) (result *domain.TransferResult, err error) {
	asset := req.Asset
	if asset == "" {
		asset = domain.AssetNative
	}
	decimals := domain.NativeDecimals
	if asset == domain.AssetToken {
		decimals = s.cfg.TokenDecimals
	}

	// Input validation happens before any session load or network call.
	if asset != domain.AssetNative && asset != domain.AssetToken {
		return nil, apperror.ErrInvalidParameters("unknown asset")
	}
	if !common.IsHexAddress(req.To) {
		return nil, apperror.ErrInvalidParameters("destination is not a valid ledger address")
	}
	amountWei, err := domain.ToBaseUnits(req.Amount, decimals)
	if err != nil || amountWei.Sign() <= 0 {
		return nil, apperror.ErrInvalidParameters("amount must be a strictly positive decimal number")
	}

	var submitted bool
	if req.ReferenceID != "" {
		fresh, err := s.guard.CheckAndSet(ctx, req.Identity, req.ReferenceID, s.cfg.GuardTTL)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if !fresh {
			return nil, apperror.ErrDuplicateTransfer()
		}
		// A rejection that never reached the provider must not burn the
		// reference; once submission is attempted the record stays.
		defer func() {
			if err == nil || submitted {
				return
			}
			if relErr := s.guard.Release(context.WithoutCancel(ctx), req.Identity, req.ReferenceID); relErr != nil {
				s.logger.Warn().Err(relErr).Str("reference_id", req.ReferenceID).
					Msg("transfer guard release failed")
			}
		}()
	}

	account, err := s.store.GetByIdentity(ctx, req.Identity)
	if err != nil {
		return nil, err
	}
	if !account.HasWallet() {
		return nil, apperror.ErrNoWalletFound()
	}
	if account.Wallet.IsDegraded() {
		return nil, apperror.ErrDegradedWallet()
	}
	from := account.Wallet.ChainAddress

	gasPrice, err := s.ledger.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validateFunds(ctx, from, asset, amountWei, gasPrice); err != nil {
		return nil, err
	}

	result = &domain.TransferResult{
		From:      from,
		To:        req.To,
		Asset:     asset,
		AmountWei: amountWei,
		Amount:    domain.FromBaseUnits(amountWei, decimals),
		Status:    domain.TransferStatusPending,
		Timestamp: time.Now().UTC(),
	}

	var submittedNonce uint64
	err = s.wallets.WithSession(ctx, req.Identity, func(account *domain.Account, session *domain.SigningSession) error {
		nonce, err := s.ledger.PendingNonce(ctx, from)
		if err != nil {
			return err
		}
		chainID := s.cfg.ChainID
		if chainID == 0 {
			if chainID, err = s.ledger.ChainID(ctx); err != nil {
				return err
			}
		}

		tx := s.buildTx(from, req.To, amountWei, asset, nonce, gasPrice, chainID)
		submitted = true
		hash, err := s.provider.SignAndSend(ctx, session.Share(), tx)
		if err != nil {
			return apperror.ErrTransferFailed("submission rejected by custody provider", err)
		}
		submittedNonce = nonce
		result.Hash = hash
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("identity", req.Identity).Str("hash", result.Hash).
		Str("asset", string(asset)).Str("amount", result.Amount).Msg("transfer submitted")

	s.awaitReceipt(ctx, result)
	s.bumpAdvisoryNonce(ctx, req.Identity, submittedNonce, result)
	s.cacheTerminal(ctx, result)

	s.audit.Record(ctx, req.Identity, domain.AuditActionTransfer, result.Hash, map[string]string{
		"to":     result.To,
		"asset":  string(asset),
		"amount": result.Amount,
		"status": string(result.Status),
	})
	return result, nil
}

// validateFunds fails fast on doomed submissions. The ledger enforces this
// anyway; the point is to reject before a session is ever loaded.
func (s *transferService) validateFunds(ctx context.Context, from string, asset domain.Asset, amountWei, gasPrice *big.Int) error {
	nativeBalance, err := s.ledger.Balance(ctx, from)
	if err != nil {
		return err
	}

	switch asset {
	case domain.AssetNative:
		gasCost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(s.cfg.GasLimit))
		required := new(big.Int).Add(amountWei, gasCost)
		if required.Cmp(nativeBalance) > 0 {
			return apperror.ErrInsufficientFunds()
		}
	case domain.AssetToken:
		gasCost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(s.cfg.TokenGasLimit))
		if gasCost.Cmp(nativeBalance) > 0 {
			return apperror.ErrInsufficientFunds()
		}
		tokenBalance, err := s.ledger.TokenBalance(ctx, s.cfg.TokenContract, from)
		if err != nil {
			return err
		}
		if amountWei.Cmp(tokenBalance) > 0 {
			return apperror.ErrInsufficientFunds()
		}
	}
	return nil
}

func (s *transferService) buildTx(from, to string, amountWei *big.Int, asset domain.Asset, nonce uint64, gasPrice *big.Int, chainID int64) *domain.UnsignedTx {
	if asset == domain.AssetToken {
		return &domain.UnsignedTx{
			From:        from,
			To:          s.cfg.TokenContract,
			ValueWei:    new(big.Int),
			Data:        erc20TransferCalldata(to, amountWei),
			Nonce:       nonce,
			GasLimit:    s.cfg.TokenGasLimit,
			GasPriceWei: gasPrice,
			ChainID:     chainID,
		}
	}
	return &domain.UnsignedTx{
		From:        from,
		To:          to,
		ValueWei:    amountWei,
		Nonce:       nonce,
		GasLimit:    s.cfg.GasLimit,
		GasPriceWei: gasPrice,
		ChainID:     chainID,
	}
}

// awaitReceipt polls for a receipt until ConfirmWait elapses. A transfer
// that has not been mined by then stays pending; callers resolve it later
// through TransactionStatus.
func (s *transferService) awaitReceipt(ctx context.Context, result *domain.TransferResult) {
	deadline := time.Now().Add(s.cfg.ConfirmWait)
	ticker := time.NewTicker(s.cfg.ConfirmInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.ledger.Receipt(ctx, result.Hash)
		if err != nil {
			s.logger.Warn().Err(err).Str("hash", result.Hash).Msg("receipt poll failed")
			result.Warnings = append(result.Warnings, "confirmation polling interrupted; status remains pending")
			return
		}
		if receipt != nil {
			applyReceipt(result, receipt)
			return
		}
		if time.Now().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// bumpAdvisoryNonce records the submitted nonce on the wallet record. Purely
// advisory; failure downgrades to a warning.
func (s *transferService) bumpAdvisoryNonce(ctx context.Context, identity string, nonce uint64, result *domain.TransferResult) {
	_, err := s.store.MutateWallet(ctx, identity, func(a *domain.Account) error {
		if !a.HasWallet() {
			return apperror.ErrNoWalletFound()
		}
		if a.Wallet.Nonce < nonce+1 {
			a.Wallet.Nonce = nonce + 1
		}
		a.Wallet.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("identity", identity).Msg("advisory nonce update failed")
		result.Warnings = append(result.Warnings, "advisory wallet nonce could not be updated")
	}
}

func (s *transferService) cacheTerminal(ctx context.Context, result *domain.TransferResult) {
	if result.Status != domain.TransferStatusConfirmed && result.Status != domain.TransferStatusFailed {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, result.Hash, payload, s.cfg.ReceiptTTL); err != nil {
		s.logger.Warn().Err(err).Str("hash", result.Hash).Msg("receipt cache write failed")
	}
}

// TransactionStatus resolves a transfer's current status. Anything that is
// not yet resolvable, an unknown hash, an unmined transaction, or an
// unreachable node, reports pending; only a hash without the 0x prefix is an
// error.
func (s *transferService) TransactionStatus(ctx context.Context, hash string) (*domain.TransferResult, error) {
	if len(hash) < 3 || hash[0] != '0' || (hash[1] != 'x' && hash[1] != 'X') {
		return nil, apperror.ErrInvalidParameters("malformed transaction hash")
	}

	if cached, err := s.cache.Get(ctx, hash); err == nil && cached != nil {
		var result domain.TransferResult
		if err := json.Unmarshal(cached, &result); err == nil {
			return &result, nil
		}
	}

	result := &domain.TransferResult{
		Hash:      hash,
		Status:    domain.TransferStatusPending,
		Timestamp: time.Now().UTC(),
	}
	receipt, err := s.ledger.Receipt(ctx, hash)
	if err != nil {
		s.logger.Warn().Err(err).Str("hash", hash).Msg("status lookup could not resolve receipt")
		return result, nil
	}
	if receipt == nil {
		return result, nil
	}

	applyReceipt(result, receipt)
	s.cacheTerminal(ctx, result)
	return result, nil
}

func applyReceipt(result *domain.TransferResult, receipt *domain.Receipt) {
	if receipt.Succeeded {
		result.Status = domain.TransferStatusConfirmed
	} else {
		result.Status = domain.TransferStatusFailed
	}
	result.BlockNumber = receipt.BlockNumber
	result.GasUsed = receipt.GasUsed
}

// erc20TransferCalldata encodes transfer(address,uint256).
func erc20TransferCalldata(to string, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20TransferSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

