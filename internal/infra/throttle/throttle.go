// Package throttle paces the referral discount batches against the billing provider's rate limits.
package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle blocks between two batches. Implementations return ctx.Err() when ctx
// ends before the wait is over.
type Throttle interface {
	Wait(ctx context.Context) error
}

// None never waits. Used by tests and one-shot runs over tiny inputs.
type None struct{}

func (None) Wait(ctx context.Context) error { return ctx.Err() }

// FixedDelay sleeps a fixed duration per call.
type FixedDelay struct {
	Delay time.Duration
}

func (f FixedDelay) Wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(f.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TokenBucket lets bursts of up to burst batches through, then refills at one
// batch per interval. The first batch runs before any Wait and is charged up front,
// so with burst 1 every gap is a full interval.
type TokenBucket struct {
	lim *rate.Limiter
}

func NewTokenBucket(interval time.Duration, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Every(interval), burst)
	lim.Allow()
	return &TokenBucket{lim: lim}
}

func (b *TokenBucket) Wait(ctx context.Context) error { return b.lim.Wait(ctx) }

// FromConfig picks the throttle for a configured mode ("fixed", "token_bucket" or "none").
func FromConfig(mode string, delay time.Duration, burst int) Throttle {
	switch mode {
	case "none":
		return None{}
	case "token_bucket":
		return NewTokenBucket(delay, burst)
	default:
		return FixedDelay{Delay: delay}
	}
}
