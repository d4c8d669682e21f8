package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodial-wallet-service/internal/core/domain"
)

func TestAuditRepo_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	event := &domain.AuditEvent{
		ID:        uuid.New(),
		Identity:  "+84901234567",
		Action:    domain.AuditActionTransfer,
		Resource:  "0xhash",
		Details:   `{"amount":"1.5"}`,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(event.ID, event.Identity, string(event.Action), event.Resource, event.Details, event.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Insert(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}
