//go:build !integration

package api

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type mockParser struct {
	ParseFunc func(payload []byte, sig string) (*model.BillingEvent, error)
}

func (m *mockParser) Parse(payload []byte, sig string) (*model.BillingEvent, error) {
	return m.ParseFunc(payload, sig)
}

type mockDispatcher struct {
	DispatchFunc func(ctx context.Context, ev *model.BillingEvent) (usecase.DispatchResult, error)
	calls        int
}

func (m *mockDispatcher) Dispatch(ctx context.Context, ev *model.BillingEvent) (usecase.DispatchResult, error) {
	m.calls++
	return m.DispatchFunc(ctx, ev)
}

type mockEvents struct {
	GetFunc func(ctx context.Context, id string) (*model.WebhookEvent, error)
}

func (m *mockEvents) Get(ctx context.Context, id string) (*model.WebhookEvent, error) {
	return m.GetFunc(ctx, id)
}

type mockDiscounts struct {
	RunFunc func(ctx context.Context, opts model.DiscountOptions) (*model.DiscountReport, error)
	got     model.DiscountOptions
}

func (m *mockDiscounts) Run(ctx context.Context, opts model.DiscountOptions) (*model.DiscountReport, error) {
	m.got = opts
	return m.RunFunc(ctx, opts)
}

type mockCanceler struct {
	CancelFunc func(ctx context.Context, id string) (*model.SubscriptionSnapshot, error)
}

func (m *mockCanceler) Cancel(ctx context.Context, id string) (*model.SubscriptionSnapshot, error) {
	return m.CancelFunc(ctx, id)
}

// mockLimiter allows the first limit calls per key.
type mockLimiter struct {
	counts map[string]int
	err    error
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[key]++
	return m.counts[key] <= limit, nil
}
