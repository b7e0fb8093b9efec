//go:build !integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"salon-billing/internal/domain/model"
)

func TestWebhookEventRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()

	t.Run("CheckProcessed should serve a cached terminal result without touching the DB", func(t *testing.T) {
		cache := &stubCache{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				if key != "webhook_event:result:evt_1" {
					t.Errorf("unexpected cache key %q", key)
				}
				return "success", nil
			},
		}
		inner := &stubLedger{
			CheckProcessedFunc: func(ctx context.Context, eventID string) (model.ProcessedStatus, error) {
				t.Error("inner repository must not be called on a cache hit")
				return model.ProcessedStatus{}, nil
			},
		}

		st, err := NewWebhookEventRepoCacheDecorator(inner, cache, time.Minute, nil).CheckProcessed(ctx, "evt_1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !st.IsProcessed || st.Result != model.EventResultSuccess {
			t.Errorf("unexpected status %+v", st)
		}
	})

	t.Run("CheckProcessed should warm the cache only for terminal results", func(t *testing.T) {
		var sets []string
		cache := &stubCache{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", redis.Nil },
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				sets = append(sets, key+"="+value.(string))
				return nil
			},
		}
		results := map[string]model.EventResult{
			"evt_done":  model.EventResultSkipped,
			"evt_error": model.EventResultError,
		}
		inner := &stubLedger{
			CheckProcessedFunc: func(ctx context.Context, eventID string) (model.ProcessedStatus, error) {
				res := results[eventID]
				return model.ProcessedStatus{IsProcessed: res.IsTerminalProcessed(), Result: res}, nil
			},
		}
		d := NewWebhookEventRepoCacheDecorator(inner, cache, time.Minute, nil)

		if _, err := d.CheckProcessed(ctx, "evt_done"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		st, err := d.CheckProcessed(ctx, "evt_error")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.IsProcessed {
			t.Error("an errored event must stay eligible for reprocessing")
		}
		if len(sets) != 1 || sets[0] != "webhook_event:result:evt_done=skipped" {
			t.Errorf("unexpected cache writes %v", sets)
		}
	})

	t.Run("CheckProcessed should fall through when Redis fails", func(t *testing.T) {
		cache := &stubCache{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", errors.New("connection refused") },
		}
		called := false
		inner := &stubLedger{
			CheckProcessedFunc: func(ctx context.Context, eventID string) (model.ProcessedStatus, error) {
				called = true
				return model.ProcessedStatus{}, nil
			},
		}
		if _, err := NewWebhookEventRepoCacheDecorator(inner, cache, time.Minute, nil).CheckProcessed(ctx, "evt_2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !called {
			t.Error("inner repository should answer when the cache is down")
		}
	})

	t.Run("Record should invalidate the cached result", func(t *testing.T) {
		var deleted []string
		cache := &stubCache{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted = append(deleted, keys...)
				return nil
			},
		}
		inner := &stubLedger{
			RecordFunc: func(ctx context.Context, eventID, eventType string, result model.EventResult) error { return nil },
		}
		err := NewWebhookEventRepoCacheDecorator(inner, cache, time.Minute, nil).
			Record(ctx, "evt_3", model.EventSubscriptionCreated, model.EventResultProcessing)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deleted) != 1 || deleted[0] != "webhook_event:result:evt_3" {
			t.Errorf("unexpected invalidation %v", deleted)
		}
	})

	t.Run("UpdateResult should not cache when the DB write fails", func(t *testing.T) {
		cache := &stubCache{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				t.Error("cache must not be written after a failed update")
				return nil
			},
		}
		inner := &stubLedger{
			UpdateResultFunc: func(ctx context.Context, eventID string, result model.EventResult, errMsg string) error {
				return errors.New("db down")
			},
		}
		err := NewWebhookEventRepoCacheDecorator(inner, cache, time.Minute, nil).
			UpdateResult(ctx, "evt_4", model.EventResultSuccess, "")
		if err == nil {
			t.Fatal("expected the DB error to be returned")
		}
	})
}
