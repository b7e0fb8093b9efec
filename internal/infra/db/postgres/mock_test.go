//go:build !integration

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/repository"
	red "salon-billing/internal/infra/redis"
)

// stubLedger stands in for the Postgres ledger behind the cache decorator. Unset
// funcs fail the call so a test notices an unexpected DB round trip.
type stubLedger struct {
	CheckProcessedFunc func(ctx context.Context, eventID string) (model.ProcessedStatus, error)
	RecordFunc         func(ctx context.Context, eventID, eventType string, result model.EventResult) error
	UpdateResultFunc   func(ctx context.Context, eventID string, result model.EventResult, errMsg string) error
	FindByIDFunc       func(ctx context.Context, eventID string) (*model.WebhookEvent, error)
}

var _ repository.WebhookEventRepository = (*stubLedger)(nil)

var errUnexpectedCall = errors.New("unexpected ledger call")

func (m *stubLedger) CheckProcessed(ctx context.Context, eventID string) (model.ProcessedStatus, error) {
	if m.CheckProcessedFunc == nil {
		return model.ProcessedStatus{}, errUnexpectedCall
	}
	return m.CheckProcessedFunc(ctx, eventID)
}

func (m *stubLedger) Record(ctx context.Context, eventID, eventType string, result model.EventResult) error {
	if m.RecordFunc == nil {
		return errUnexpectedCall
	}
	return m.RecordFunc(ctx, eventID, eventType, result)
}

func (m *stubLedger) UpdateResult(ctx context.Context, eventID string, result model.EventResult, errMsg string) error {
	if m.UpdateResultFunc == nil {
		return errUnexpectedCall
	}
	return m.UpdateResultFunc(ctx, eventID, result, errMsg)
}

func (m *stubLedger) FindByID(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	if m.FindByIDFunc == nil {
		return nil, errUnexpectedCall
	}
	return m.FindByIDFunc(ctx, eventID)
}

// stubCache is a RedisClient whose unset funcs behave like an empty, healthy cache.
type stubCache struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = (*stubCache)(nil)

func (m *stubCache) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", redis.Nil
	}
	return m.GetFunc(ctx, key)
}

func (m *stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}

func (m *stubCache) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}

func (m *stubCache) Ping(context.Context) error                           { return nil }
func (m *stubCache) Incr(context.Context, string) (int64, error)          { return 1, nil }
func (m *stubCache) Expire(context.Context, string, time.Duration) error { return nil }
func (m *stubCache) Close() error                                         { return nil }
