package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitStore_Increment(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRateLimitStore(client)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		count, err := store.Increment(ctx, "login:+84901234567", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
}

func TestRateLimitStore_SeparateKeys(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRateLimitStore(client)
	ctx := context.Background()

	count, err := store.Increment(ctx, "login:+84901234567", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, err = store.Increment(ctx, "login:+84907777777", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
