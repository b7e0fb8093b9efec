//go:build !integration

package sched

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type runnerFunc func(ctx context.Context, opts model.DiscountOptions) (*model.DiscountReport, error)

func (f runnerFunc) Run(ctx context.Context, opts model.DiscountOptions) (*model.DiscountReport, error) {
	return f(ctx, opts)
}

func TestReferralWorker_RunsUntilCanceled(t *testing.T) {
	var runs atomic.Int32
	runner := runnerFunc(func(ctx context.Context, opts model.DiscountOptions) (*model.DiscountReport, error) {
		assert.Empty(t, opts.Emails)
		assert.False(t, opts.ForceUpdated)
		switch runs.Add(1) {
		case 1:
			return nil, domain.ErrBatchInProgress
		case 2:
			return nil, errors.New("store down")
		}
		return &model.DiscountReport{RunID: "r"}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	w := NewReferralWorker(5*time.Millisecond, runner, newTestLogger())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestPoolStatsWorker_SamplesImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sampled := make(chan struct{}, 1)
	w := NewPoolStatsWorker(time.Hour, func() (int32, int32, int32) {
		select {
		case sampled <- struct{}{}:
		default:
		}
		return 7, 3, 4
	}, newTestLogger())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	select {
	case <-sampled:
	case <-time.After(time.Second):
		t.Fatal("pool stats were not sampled on start")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
