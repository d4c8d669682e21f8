package postgres

import (
	"context"
	"fmt"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) ports.AuditRepository {
	return &AuditRepo{pool: pool}
}

// Insert writes one audit event.
func (r *AuditRepo) Insert(ctx context.Context, event *domain.AuditEvent) error {
	query := `INSERT INTO audit_events (id, identity, action, resource, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		event.ID, event.Identity, string(event.Action), event.Resource, event.Details, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
