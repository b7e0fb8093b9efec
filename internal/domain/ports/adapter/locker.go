package adapter

import (
	"context"
	"time"
)

// Locker is a distributed mutual-exclusion primitive. TryLock returns domain.ErrLockHeld
// when another owner holds key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
