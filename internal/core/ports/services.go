package ports

import (
	"context"
	"math/big"
	"time"

	"custodial-wallet-service/internal/core/domain"
)

// ShareCipher handles authenticated encryption of user key shares.
type ShareCipher interface {
	Encrypt(plaintext string) (domain.ShareEnvelope, error)
	Decrypt(envelope domain.ShareEnvelope) (string, error)
}

// CustodyProvider is the outbound client for the MPC custody provider. The
// user share is always carried by the caller as an owned value; the client
// holds no session state between calls.
type CustodyProvider interface {
	// HasWallet reports whether the provider already holds a wallet for the
	// identity.
	HasWallet(ctx context.Context, identity string) (bool, error)
	// CreateWallet provisions (or claims a pre-generated) wallet and returns
	// the raw user share alongside the identifiers.
	CreateWallet(ctx context.Context, identity string) (custodyID string, address string, share string, err error)
	// SignAndSend signs the transaction with the caller-supplied share and
	// broadcasts it, returning the transaction hash.
	SignAndSend(ctx context.Context, share string, tx *domain.UnsignedTx) (string, error)
}

// CustodyService ensures an identity has wallet material, absorbing the
// provider's partial-failure modes into an explicit provenance.
type CustodyService interface {
	// EnsureWallet returns material for the identity: existing wallet with a
	// fresh share, a newly created wallet, or a degraded placeholder when the
	// provider has a wallet but no retrievable share.
	EnsureWallet(ctx context.Context, identity string) (*domain.WalletMaterial, error)
}

// LedgerClient is the read-side ledger RPC surface.
type LedgerClient interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, contract string, address string) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	PendingNonce(ctx context.Context, address string) (uint64, error)
	// Receipt returns nil (no error) while the transaction is unmined or
	// unknown to the node.
	Receipt(ctx context.Context, hash string) (*domain.Receipt, error)
	ChainID(ctx context.Context) (int64, error)
}

// WalletService defines wallet lifecycle operations.
type WalletService interface {
	// CreateWallet is idempotent per identity: an account that already has a
	// wallet gets it back unchanged, and concurrent calls collapse to a
	// single provider interaction.
	CreateWallet(ctx context.Context, identity string) (*WalletCreateResult, error)
	// RefreshBalance reads the live native balance and rewrites the cached
	// copy when it drifted beyond the configured threshold.
	RefreshBalance(ctx context.Context, identity string) (*domain.BalanceRefresh, error)
	// TokenBalance reads the live token balance. Token balances are not
	// cached.
	TokenBalance(ctx context.Context, identity string) (*domain.BalanceRefresh, error)
	// WithSession decrypts the wallet share into a session handle owned
	// exclusively by fn for the duration of the call. Calls for the same
	// identity are serialized; sessions for different identities never share
	// state.
	WithSession(ctx context.Context, identity string, fn func(account *domain.Account, session *domain.SigningSession) error) error
}

// WalletCreateResult reports the wallet returned to the caller and whether
// this call created it.
type WalletCreateResult struct {
	Account  *domain.Account
	Created  bool
	Warnings []string
}

// TransferService defines the transfer engine operations.
type TransferService interface {
	Transfer(ctx context.Context, req TransferRequest) (*domain.TransferResult, error)
	// TransactionStatus resolves the current status of a submitted transfer
	// by hash. Unknown hashes report pending, never an error.
	TransactionStatus(ctx context.Context, hash string) (*domain.TransferResult, error)
}

// TransferRequest holds validated input for a transfer.
type TransferRequest struct {
	Identity    string
	To          string
	Amount      string // decimal units
	Asset       domain.Asset
	ReferenceID string
}

// AccountService defines registration, authentication, and listing.
type AccountService interface {
	Register(ctx context.Context, req RegisterRequest) (*WalletCreateResult, error)
	Login(ctx context.Context, identity string, role domain.Role) (*LoginResult, error)
	List(ctx context.Context) ([]AccountSummary, error)
}

// RegisterRequest holds validated registration input.
type RegisterRequest struct {
	Identity     string
	DisplayName  string
	Role         domain.Role
	Organization string
}

// LoginResult carries the issued token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *domain.Account
}

// AccountSummary is the operator-facing listing row.
type AccountSummary struct {
	SequenceID   int64             `json:"sequence_id"`
	Identity     string            `json:"identity"`
	DisplayName  string            `json:"display_name"`
	Role         domain.Role       `json:"role"`
	HasWallet    bool              `json:"has_wallet"`
	ChainAddress string            `json:"chain_address,omitempty"`
	Provenance   domain.Provenance `json:"provenance,omitempty"`
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(identity string, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Identity string
	Role     domain.Role
}

// AuditService records audit events. Recording must never fail a caller's
// primary operation.
type AuditService interface {
	Record(ctx context.Context, identity string, action domain.AuditAction, resource string, details any)
}
