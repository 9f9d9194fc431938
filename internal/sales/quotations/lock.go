package quotations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

const sessionLockBackoff = 50 * time.Millisecond

// RedisCommitLocker backs a per-quotation ticket with a Redis lock so that
// two application instances never work on the same quotation at once.
type RedisCommitLocker struct {
	client *redislock.Client
	ttl    time.Duration
	key    func(string) string
	wait   time.Duration
}

// NewRedisCommitLocker guards save and finalize. A taken ticket fails fast.
func NewRedisCommitLocker(client *redislock.Client, ttl time.Duration) *RedisCommitLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCommitLocker{client: client, ttl: ttl, key: shared.QuotationCommitLockKey}
}

// NewRedisSessionLocker guards every session write. Acquire retries for up
// to wait before giving up with ErrOperationInFlight; ttl must outlast a
// commit round trip.
func NewRedisSessionLocker(client *redislock.Client, ttl, wait time.Duration) *RedisCommitLocker {
	l := NewRedisCommitLocker(client, ttl)
	l.key = shared.QuotationSessionLockKey
	l.wait = wait
	return l
}

func (l *RedisCommitLocker) Acquire(ctx context.Context, quotationID string) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, l.key(quotationID), l.ttl, l.options())
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrOperationInFlight
		}
		return nil, fmt.Errorf("obtain lock: %w", err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}

func (l *RedisCommitLocker) options() *redislock.Options {
	if l.wait <= 0 {
		return nil
	}
	retries := int(l.wait / sessionLockBackoff)
	return &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(sessionLockBackoff), retries),
	}
}
