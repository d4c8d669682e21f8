package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodial-wallet-service/internal/core/domain"
)

func TestJWTTokenServiceRoundTrip(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-chars-long!!", time.Hour, "custodial-wallet-service")

	token, expiresAt, err := svc.Generate("+84901234567", domain.RoleInvestor)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "+84901234567", claims.Identity)
	assert.Equal(t, domain.RoleInvestor, claims.Role)
}

func TestJWTTokenServiceWrongSecret(t *testing.T) {
	issuer := NewJWTTokenService("secret-one-secret-one-secret-one!!!!", time.Hour, "x")
	verifier := NewJWTTokenService("secret-two-secret-two-secret-two!!!!", time.Hour, "x")

	token, _, err := issuer.Generate("+84901234567", domain.RoleInvestor)
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenServiceExpired(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-chars-long!!", -time.Minute, "x")

	token, _, err := svc.Generate("+84901234567", domain.RoleInvestor)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenServiceGarbage(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-chars-long!!", time.Hour, "x")

	_, err := svc.Validate("not.a.jwt")
	assert.Error(t, err)
}
