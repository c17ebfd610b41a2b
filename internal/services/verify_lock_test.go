package services

import (
	"bank-gateway-api/internal/models"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyLockSerializesPerRecord(t *testing.T) {
	setupTestStores(t)
	lock := NewVerifyLock()
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, models.BankTypeSepehr, "T-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second acquisition of the same record must fail
	ok, err = lock.Acquire(ctx, models.BankTypeSepehr, "T-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Other records are unaffected
	ok, err = lock.Acquire(ctx, models.BankTypeSepehr, "T-2")
	require.NoError(t, err)
	assert.True(t, ok)

	lock.Release(models.BankTypeSepehr, "T-1")
	ok, err = lock.Acquire(ctx, models.BankTypeSepehr, "T-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyLockReleaseSurvivesCanceledContext(t *testing.T) {
	setupTestStores(t)
	lock := NewVerifyLock()

	ctx, cancel := context.WithCancel(context.Background())
	ok, err := lock.Acquire(ctx, models.BankTypePEC, "T-1")
	require.NoError(t, err)
	require.True(t, ok)

	// The callback request is canceled mid-verify; the lock must still be
	// freed instead of lingering until the TTL
	cancel()
	lock.Release(models.BankTypePEC, "T-1")

	ok, err = lock.Acquire(context.Background(), models.BankTypePEC, "T-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
