package dto

// RegisterRequest is the request body for account registration. The role
// comes from the route, not the body; organization applies to entrepreneurs.
type RegisterRequest struct {
	Identity     string `json:"identity" binding:"required,phone_identity"`
	DisplayName  string `json:"display_name" binding:"required,min=1,max=100"`
	Organization string `json:"organization" binding:"omitempty,max=100"`
}

// LoginRequest is the request body for account login.
type LoginRequest struct {
	Identity string `json:"identity" binding:"required,phone_identity"`
	Role     string `json:"role" binding:"required,oneof=investor entrepreneur"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	SequenceID  int64           `json:"sequence_id"`
	Identity    string          `json:"identity"`
	DisplayName string          `json:"display_name"`
	Role        string          `json:"role"`
	Wallet      *WalletResponse `json:"wallet,omitempty"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// WalletResponse reports the wallet attached to an account.
type WalletResponse struct {
	Address    string `json:"address"`
	Provenance string `json:"provenance"`
	Balance    string `json:"balance"` // wei, decimal string
	Created    bool   `json:"created"`
}

// BalanceResponse is the response for balance queries.
type BalanceResponse struct {
	Asset        string `json:"asset"`
	Wei          string `json:"wei"`
	Amount       string `json:"amount"` // decimal units
	CacheUpdated bool   `json:"cache_updated,omitempty"`
}

// TransferRequest is the request body for transfer submission. ReferenceID
// is the caller's idempotency handle; omitting it skips duplicate detection.
type TransferRequest struct {
	To          string `json:"to_address" binding:"required,eth_address"`
	Amount      string `json:"amount" binding:"required,max=78"`
	Asset       string `json:"asset" binding:"omitempty,oneof=native token"`
	ReferenceID string `json:"reference_id" binding:"omitempty,max=100"`
}

// TransferResponse is the response body for transfer results and status
// lookups.
type TransferResponse struct {
	Hash        string `json:"hash"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Asset       string `json:"asset,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Status      string `json:"status"`
	BlockNumber string `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used,omitempty"`
	Timestamp   string `json:"timestamp"`
}
