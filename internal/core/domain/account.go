package domain

import "time"

// Role represents the kind of platform participant.
type Role string

const (
	RoleInvestor     Role = "investor"
	RoleEntrepreneur Role = "entrepreneur"
)

// AccountStatus represents the state of a platform account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
)

// Account is a platform participant keyed by a normalized phone identity.
// There is exactly one Account per identity; SequenceID is assigned once at
// creation and never reused.
type Account struct {
	SequenceID   int64         `json:"sequence_id"`
	Identity     string        `json:"identity"` // normalized phone: + and 9-16 digits
	DisplayName  string        `json:"display_name"`
	Role         Role          `json:"role"`
	Organization string        `json:"organization,omitempty"` // entrepreneurs only
	Status       AccountStatus `json:"status"`
	Wallet       *Wallet       `json:"wallet,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsActive returns true if the account may operate its wallet.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// HasWallet returns true if a wallet record has been persisted. The wallet
// is created atomically: a chain address without an encrypted share (or the
// reverse) is never stored.
func (a *Account) HasWallet() bool {
	return a.Wallet != nil && a.Wallet.ChainAddress != ""
}
