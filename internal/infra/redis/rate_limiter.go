package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter counts requests per key in clock-aligned windows. Every window gets its
// own counter key, so a lost EXPIRE can never pin a caller at the limit.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow counts one request against key. A non-positive limit or window disables it.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	slot := windowKey(key, r.now(), window)
	n, err := r.client.Incr(ctx, slot)
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, slot, 2*window); err != nil {
			return false, fmt.Errorf("rate limit %s: expire: %w", key, err)
		}
	}
	return n <= int64(limit), nil
}

func windowKey(key string, at time.Time, window time.Duration) string {
	return fmt.Sprintf("%s:%d", key, at.UnixNano()/int64(window))
}

// AdminRouteKey scopes the admin API window to a caller and route.
func AdminRouteKey(subject, route string) string {
	return fmt.Sprintf("rate_limit:admin:%s:%s", subject, route)
}
