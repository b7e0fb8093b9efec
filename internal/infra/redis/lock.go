package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/ports/adapter"
)

var _ adapter.Locker = (*RedisLocker)(nil)

// RedisLocker guards the referral batch across processes: SET NX PX to take the lock,
// a token-checked script to release it.
type RedisLocker struct {
	cli      *redis.Client
	attempts int
	wait     time.Duration
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, attempts: 5, wait: 50 * time.Millisecond}
}

// TryLock polls a few times before giving up with domain.ErrLockHeld. The returned
// token must be handed back to Unlock.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	op := func() error {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		switch {
		case err != nil:
			return err
		case !ok:
			return domain.ErrLockHeld
		}
		return nil
	}
	retries := uint64(0)
	if l.attempts > 1 {
		retries = uint64(l.attempts - 1)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(l.wait), retries), ctx)
	err := backoff.Retry(op, b)
	switch {
	case err == nil:
		return token, nil
	case ctx.Err() != nil:
		return "", ctx.Err()
	default:
		return "", fmt.Errorf("acquire lock %s: %w", key, err)
	}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Unlock releases key only while it still holds token; an expired or foreign lock is left alone.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.cli, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
