package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, audit events are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Record writes an audit event asynchronously (fire-and-forget). It must
// never fail or slow the caller's primary operation.
func (s *auditService) Record(ctx context.Context, identity string, action domain.AuditAction, resource string, details any) {
	event := &domain.AuditEvent{
		ID:        uuid.New(),
		Identity:  identity,
		Action:    action,
		Resource:  resource,
		CreatedAt: time.Now().UTC(),
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			event.Details = string(raw)
		}
	}

	go func() {
		s.log.Info().
			Str("identity", event.Identity).
			Str("action", string(event.Action)).
			Str("resource", event.Resource).
			Msg("audit")

		if s.repo != nil {
			insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := s.repo.Insert(insertCtx, event); err != nil {
				s.log.Warn().Err(err).Str("action", string(event.Action)).Msg("failed to persist audit event")
			}
		}
	}()
}
