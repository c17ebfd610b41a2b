package services

import (
	"bank-gateway-api/internal/config"
	"bank-gateway-api/internal/database"
	"bank-gateway-api/internal/models"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// VerifyLock serializes the check-then-verify sequence per payment record, so
// two near-simultaneous deliveries of the same bank notification cannot both
// reach the settlement API. The TTL bounds how long a crashed holder can keep
// a record locked.
type VerifyLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewVerifyLock creates a verify lock over the shared Redis client
func NewVerifyLock() *VerifyLock {
	ttl := 120 * time.Second
	if config.AppConfig != nil && config.AppConfig.VerifyLockTTLSeconds > 0 {
		ttl = time.Duration(config.AppConfig.VerifyLockTTLSeconds) * time.Second
	}
	return &VerifyLock{
		client: database.GetRedis(),
		ttl:    ttl,
	}
}

func (l *VerifyLock) key(bankType models.BankType, trackingCode string) string {
	return fmt.Sprintf("verify_lock:%s:%s", bankType, trackingCode)
}

// Acquire takes the per-record lock. Returns false when another callback
// delivery for the same record is already being processed.
func (l *VerifyLock) Acquire(ctx context.Context, bankType models.BankType, trackingCode string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(bankType, trackingCode), time.Now().Unix(), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire verify lock: %w", err)
	}
	return ok, nil
}

// Release frees the per-record lock. It runs on a fresh context so the lock
// is freed even when the callback request was canceled mid-verify; otherwise
// the record would stay locked until the TTL expires.
func (l *VerifyLock) Release(bankType models.BankType, trackingCode string) {
	l.client.Del(context.Background(), l.key(bankType, trackingCode))
}
