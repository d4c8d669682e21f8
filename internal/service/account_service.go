package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
)

type accountService struct {
	store   ports.AccountStore
	wallets ports.WalletService
	tokens  ports.TokenService
	audit   ports.AuditService
	logger  zerolog.Logger
}

// NewAccountService creates the registration and authentication service.
func NewAccountService(
	store ports.AccountStore,
	wallets ports.WalletService,
	tokens ports.TokenService,
	audit ports.AuditService,
	logger zerolog.Logger,
) ports.AccountService {
	return &accountService{
		store:   store,
		wallets: wallets,
		tokens:  tokens,
		audit:   audit,
		logger:  logger.With().Str("component", "account_service").Logger(),
	}
}

// Register creates the account, then attempts wallet provisioning best
// effort: a custody outage degrades registration to a warning, it does not
// fail it. The wallet can be created later through the wallet endpoint.
func (s *accountService) Register(ctx context.Context, req ports.RegisterRequest) (*ports.WalletCreateResult, error) {
	now := time.Now().UTC()
	account := &domain.Account{
		Identity:     req.Identity,
		DisplayName:  req.DisplayName,
		Role:         req.Role,
		Organization: req.Organization,
		Status:       domain.AccountStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, req.Identity, domain.AuditActionRegister, "", map[string]string{
		"role": string(req.Role),
	})

	result, err := s.wallets.CreateWallet(ctx, req.Identity)
	if err != nil {
		s.logger.Warn().Err(err).Str("identity", req.Identity).
			Msg("wallet provisioning during registration failed")
		return &ports.WalletCreateResult{
			Account:  account,
			Created:  true,
			Warnings: []string{"wallet could not be provisioned; retry via the wallet endpoint"},
		}, nil
	}
	return &ports.WalletCreateResult{Account: result.Account, Created: true, Warnings: result.Warnings}, nil
}

// Login authenticates by identity and role. There are no passwords in this
// flow; possession of the phone identity is established upstream.
func (s *accountService) Login(ctx context.Context, identity string, role domain.Role) (*ports.LoginResult, error) {
	account, err := s.store.GetByIdentity(ctx, identity)
	if err != nil {
		// Do not leak which identities exist, but let infrastructure
		// failures surface as what they are.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == apperror.ErrAccountNotFound().Code {
			return nil, apperror.ErrInvalidCredentials()
		}
		return nil, err
	}
	if account.Role != role {
		return nil, apperror.ErrInvalidCredentials()
	}
	if !account.IsActive() {
		return nil, apperror.ErrAccountSuspended()
	}

	token, expiresAt, err := s.tokens.Generate(account.Identity, account.Role)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	s.audit.Record(ctx, identity, domain.AuditActionLogin, "", nil)
	return &ports.LoginResult{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}

// List returns the operator-facing account listing. Degraded wallets are
// visibly marked so reconciliation work is discoverable.
func (s *accountService) List(ctx context.Context) ([]ports.AccountSummary, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]ports.AccountSummary, 0, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		summary := ports.AccountSummary{
			SequenceID:  a.SequenceID,
			Identity:    a.Identity,
			DisplayName: a.DisplayName,
			Role:        a.Role,
		}
		if a.HasWallet() {
			summary.HasWallet = true
			summary.ChainAddress = a.Wallet.ChainAddress
			summary.Provenance = a.Wallet.Provenance
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
