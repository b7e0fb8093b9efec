//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-billing/internal/config"
	"salon-billing/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(context.Background(), config.RedisConfig{URL: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	l := NewLocker(c)
	l.wait = time.Millisecond

	token, err := l.TryLock(ctx, "lock:referral-discounts", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = l.TryLock(ctx, "lock:referral-discounts", time.Minute)
	assert.True(t, errors.Is(err, domain.ErrLockHeld), "got %v", err)

	// A foreign token must not release the lock.
	require.NoError(t, l.Unlock(ctx, "lock:referral-discounts", "someone-else"))
	assert.True(t, mr.Exists("lock:referral-discounts"))

	require.NoError(t, l.Unlock(ctx, "lock:referral-discounts", token))
	assert.False(t, mr.Exists("lock:referral-discounts"))

	_, err = l.TryLock(ctx, "lock:referral-discounts", time.Minute)
	assert.NoError(t, err)
}

func TestRedisLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	l := NewLocker(c)
	l.wait = time.Millisecond

	_, err := l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, err = l.TryLock(ctx, "k", time.Second)
	assert.NoError(t, err, "an expired lock must be reacquirable")
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	rl := NewRateLimiter(c)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	key := AdminRouteKey("api-key", "run-discounts")

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, key, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}
	ok, err := rl.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	slot := windowKey(key, now, time.Minute)
	assert.Equal(t, 2*time.Minute, mr.TTL(slot), "counter expires on its own")

	now = now.Add(time.Minute)
	ok, err = rl.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "next window starts fresh")

	ok, err = rl.Allow(ctx, key, 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "zero limit disables the check")
}

func TestRateLimiter_RedisDown(t *testing.T) {
	c, mr := newTestClient(t)
	rl := NewRateLimiter(c)
	mr.Close()
	_, err := rl.Allow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}

func TestNewClient_URLForms(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	for _, url := range []string{mr.Addr(), "redis://" + mr.Addr() + "/2"} {
		c, err := NewClient(ctx, config.RedisConfig{URL: url})
		require.NoError(t, err, url)
		require.NoError(t, c.Ping(ctx))
		_ = c.Close()
	}

	opts, err := clientOptions(config.RedisConfig{URL: "redis://:urlpass@cache:6380/1", Password: "cfgpass"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "cfgpass", opts.Password, "explicit password wins")
	assert.Equal(t, 1, opts.DB)

	_, err = clientOptions(config.RedisConfig{URL: "http://cache:6379"})
	assert.Error(t, err)
}

func TestRedisLocker_CanceledWhileWaiting(t *testing.T) {
	c, _ := newTestClient(t)
	l := NewLocker(c)
	l.wait = 50 * time.Millisecond

	_, err := l.TryLock(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.TryLock(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
