package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
)

// degradedSharePlaceholder is what gets encrypted and persisted when the
// provider has a wallet but no retrievable share. It can never sign anything;
// transfers on degraded wallets are rejected upstream.
const degradedSharePlaceholder = "UNRECOVERABLE-SHARE"

type custodyService struct {
	provider ports.CustodyProvider
	logger   zerolog.Logger
}

// NewCustodyService creates the custody orchestration layer over the raw
// provider client.
func NewCustodyService(provider ports.CustodyProvider, logger zerolog.Logger) ports.CustodyService {
	return &custodyService{
		provider: provider,
		logger:   logger.With().Str("component", "custody_service").Logger(),
	}
}

// EnsureWallet resolves wallet material for an identity with no local wallet
// record. It never retries internally; provider unreachability surfaces as a
// retryable error and the retry decision belongs to the caller.
func (s *custodyService) EnsureWallet(ctx context.Context, identity string) (*domain.WalletMaterial, error) {
	exists, err := s.provider.HasWallet(ctx, identity)
	if err != nil {
		return nil, apperror.ErrCustodyUnavailable("wallet lookup", err)
	}

	if !exists {
		return s.createFresh(ctx, identity)
	}
	return s.recoverExisting(ctx, identity)
}

// createFresh provisions a brand-new provider wallet. Creation without a
// retrievable share is unrecoverable and must not be persisted, so it is a
// hard failure rather than a degraded fallback.
func (s *custodyService) createFresh(ctx context.Context, identity string) (*domain.WalletMaterial, error) {
	custodyID, address, share, err := s.provider.CreateWallet(ctx, identity)
	if err != nil {
		return nil, apperror.ErrCustodyUnavailable("wallet creation", err)
	}
	if share == "" {
		s.logger.Error().Str("identity", identity).Msg("provider created wallet but returned no share")
		return nil, apperror.ErrShareUnavailable()
	}

	if custodyID == "" {
		custodyID = fallbackCustodyID(identity)
	}
	return &domain.WalletMaterial{
		CustodyID:  custodyID,
		Address:    address,
		RawShare:   share,
		Provenance: domain.ProvenanceGenuine,
	}, nil
}

// recoverExisting handles the provider-has-wallet-but-no-local-record case,
// e.g. a previous run that failed after provider-side creation but before
// persistence. Best effort: one re-creation call to claim the wallet and its
// share again, then a clearly marked degraded placeholder.
func (s *custodyService) recoverExisting(ctx context.Context, identity string) (*domain.WalletMaterial, error) {
	custodyID, address, share, createErr := s.provider.CreateWallet(ctx, identity)
	if createErr != nil {
		s.logger.Warn().Err(createErr).Str("identity", identity).
			Msg("re-creation for existing provider wallet failed")
	}

	if share != "" && createErr == nil && address != "" {
		if custodyID == "" {
			custodyID = fallbackCustodyID(identity)
		}
		return &domain.WalletMaterial{
			CustodyID:  custodyID,
			Address:    address,
			RawShare:   share,
			Provenance: domain.ProvenanceGenuine,
		}, nil
	}

	// Degraded: keep the system internally consistent with synthetic
	// identifiers the operator can detect and reconcile.
	reason := "existing provider wallet with no retrievable share"
	if createErr != nil {
		reason = "existing provider wallet, re-creation failed: " + createErr.Error()
	}
	if custodyID == "" {
		custodyID = fallbackCustodyID(identity)
	}
	if address == "" {
		address = FallbackAddress(identity)
	}

	s.logger.Error().Str("identity", identity).Str("address", address).Str("reason", reason).
		Msg("persisting degraded wallet material")

	return &domain.WalletMaterial{
		CustodyID:      custodyID,
		Address:        address,
		RawShare:       degradedSharePlaceholder,
		Provenance:     domain.ProvenanceDegraded,
		DegradedReason: reason,
	}, nil
}

// FallbackAddress derives a deterministic synthetic ledger address from the
// identity's digits, zero padded to the 40-character address width.
func FallbackAddress(identity string) string {
	digits := identityDigits(identity)
	if len(digits) > 40 {
		digits = digits[len(digits)-40:]
	}
	return "0x" + strings.Repeat("0", 40-len(digits)) + digits
}

func fallbackCustodyID(identity string) string {
	return "wallet-" + identityDigits(identity)
}

func identityDigits(identity string) string {
	var b strings.Builder
	for _, r := range identity {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
