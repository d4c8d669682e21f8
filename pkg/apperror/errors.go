package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
// Retryable marks external-dependency failures the caller may resubmit
// (with fresh ledger state, never by replaying a stale signed transaction).
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Retryable  bool   `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Configuration (CFG) ----

// ErrConfiguration is fatal at startup, e.g. an encryption key that is not
// exactly 32 bytes after hex decoding.
func ErrConfiguration(err error) *AppError {
	return Wrap("CFG_001", "Invalid configuration", http.StatusInternalServerError, err)
}

// ---- Accounts (ACC) ----

func ErrDuplicateIdentity() *AppError {
	return New("ACC_001", "An account already exists for this identity", http.StatusConflict)
}

func ErrAccountNotFound() *AppError {
	return New("ACC_002", "Account not found", http.StatusNotFound)
}

// ---- Wallets & custody (WAL) ----

func ErrNoWalletFound() *AppError {
	return New("WAL_001", "No wallet found for this identity", http.StatusNotFound)
}

func ErrShareUnavailable() *AppError {
	return New("WAL_002", "Custody provider returned no retrievable key share", http.StatusBadGateway)
}

// ErrDecryptionFailed is an integrity failure. It is never retried.
func ErrDecryptionFailed(err error) *AppError {
	return Wrap("WAL_003", "Stored key share failed authentication", http.StatusInternalServerError, err)
}

func ErrCustodyUnavailable(op string, err error) *AppError {
	e := Wrap("WAL_004", fmt.Sprintf("Custody provider unavailable during %s", op), http.StatusServiceUnavailable, err)
	e.Retryable = true
	return e
}

// ---- Transfers (TRX) ----

func ErrInvalidParameters(message string) *AppError {
	return New("TRX_001", message, http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("TRX_002", "Insufficient balance to cover amount plus gas", http.StatusPaymentRequired)
}

func ErrTransferFailed(reason string, err error) *AppError {
	return Wrap("TRX_003", fmt.Sprintf("Transfer failed: %s", reason), http.StatusBadGateway, err)
}

// ErrDegradedWallet rejects operations that need real key material on a
// wallet persisted with placeholder custody data (operator reconciliation
// required).
func ErrDegradedWallet() *AppError {
	return New("TRX_004", "Wallet is in a degraded custody state and requires reconciliation", http.StatusConflict)
}

func ErrDuplicateTransfer() *AppError {
	return New("TRX_005", "A transfer with this reference was already submitted", http.StatusConflict)
}

// ---- Ledger (LED) ----

func ErrLedgerUnreachable(op string, err error) *AppError {
	e := Wrap("LED_001", fmt.Sprintf("Ledger unreachable during %s", op), http.StatusServiceUnavailable, err)
	e.Retryable = true
	return e
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrAccountSuspended() *AppError {
	return New("AUTH_003", "Account is not active", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("TRX_001", message, http.StatusBadRequest)
}
