package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegister       AuditAction = "REGISTER"
	AuditActionLogin          AuditAction = "LOGIN"
	AuditActionWalletCreated  AuditAction = "WALLET_CREATED"
	AuditActionWalletDegraded AuditAction = "WALLET_DEGRADED"
	AuditActionSessionRecover AuditAction = "SESSION_RECOVER"
	AuditActionTransfer       AuditAction = "TRANSFER"
)

// AuditEvent records a single audited action. Degraded-wallet events are the
// reconciliation trail operators act on.
type AuditEvent struct {
	ID        uuid.UUID   `json:"id"`
	Identity  string      `json:"identity"`
	Action    AuditAction `json:"action"`
	Resource  string      `json:"resource,omitempty"` // address, tx hash, custody id
	Details   string      `json:"details,omitempty"`  // JSON string
	CreatedAt time.Time   `json:"created_at"`
}
