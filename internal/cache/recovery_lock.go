package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrLockTimeout is returned when the lock could not be taken before the context ended.
var ErrLockTimeout = errors.New("recovery lock wait timed out")

const (
	lockPollInterval = 50 * time.Millisecond

	// DefaultRecoveryLockTTL replaces a non-positive TTL so a lock key always expires.
	DefaultRecoveryLockTTL = 30 * time.Second
)

// RecoveryLock serializes password recovery requests per admin across processes,
// so issuing a code and mailing it happen as one unit. The TTL bounds how long a
// crashed holder can block others.
type RecoveryLock struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewRecoveryLock creates a lock backed by redis.
func NewRecoveryLock(redis *RedisClient, ttl time.Duration) *RecoveryLock {
	if ttl <= 0 {
		ttl = DefaultRecoveryLockTTL
	}
	return &RecoveryLock{redis: redis, ttl: ttl}
}

func (l *RecoveryLock) key(adminID int64) string {
	return fmt.Sprintf("recovery:lock:%d", adminID)
}

// Acquire blocks until the lock for adminID is held or ctx ends. The returned
// release func is safe to call once the holder is done; it never removes a lock
// that expired and was taken by someone else.
func (l *RecoveryLock) Acquire(ctx context.Context, adminID int64) (func(), error) {
	key := l.key(adminID)
	owner := uuid.NewString()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.redis.SetNX(ctx, key, owner, l.ttl)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrLockTimeout
			}
			return nil, fmt.Errorf("acquire recovery lock: %w", err)
		}
		if ok {
			return func() { l.release(key, owner) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}
}

func (l *RecoveryLock) release(key, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := l.redis.DeleteIfEquals(ctx, key, owner); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to release recovery lock")
	}
}
