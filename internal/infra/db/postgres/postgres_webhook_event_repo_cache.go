package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/repository"
	"salon-billing/internal/infra/metrics"
	red "salon-billing/internal/infra/redis"
)

var _ repository.WebhookEventRepository = (*webhookEventRepoCacheDecorator)(nil)

// webhookEventRepoCacheDecorator answers the idempotency gate from Redis for events that
// reached a terminal result. Only success and skipped are cached: those never change again,
// so a stale entry cannot cause an event to be skipped wrongly.
type webhookEventRepoCacheDecorator struct {
	inner repository.WebhookEventRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewWebhookEventRepoCacheDecorator(inner repository.WebhookEventRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.WebhookEventRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "ledger_cache").Logger()
	return &webhookEventRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func eventCacheKey(eventID string) string {
	return fmt.Sprintf("webhook_event:result:%s", eventID)
}

func (d *webhookEventRepoCacheDecorator) CheckProcessed(ctx context.Context, eventID string) (model.ProcessedStatus, error) {
	key := eventCacheKey(eventID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		if res := model.EventResult(val); res.IsTerminalProcessed() {
			metrics.IncLedgerCache("hit")
			return model.ProcessedStatus{IsProcessed: true, Result: res}, nil
		}
		metrics.IncLedgerCache("miss")
	} else if err == redis.Nil {
		metrics.IncLedgerCache("miss")
	} else {
		metrics.IncLedgerCache("error")
		d.log.Warn().Err(err).Str("event_id", eventID).Msg("ledger cache read failed")
	}

	st, err := d.inner.CheckProcessed(ctx, eventID)
	if err != nil {
		return st, err
	}
	if st.IsProcessed {
		d.remember(ctx, eventID, st.Result)
	}
	return st, nil
}

func (d *webhookEventRepoCacheDecorator) Record(ctx context.Context, eventID, eventType string, result model.EventResult) error {
	_ = d.cache.Del(ctx, eventCacheKey(eventID))
	return d.inner.Record(ctx, eventID, eventType, result)
}

func (d *webhookEventRepoCacheDecorator) UpdateResult(ctx context.Context, eventID string, result model.EventResult, errMsg string) error {
	_ = d.cache.Del(ctx, eventCacheKey(eventID))
	if err := d.inner.UpdateResult(ctx, eventID, result, errMsg); err != nil {
		return err
	}
	if result.IsTerminalProcessed() {
		d.remember(ctx, eventID, result)
	}
	return nil
}

// FindByID is an admin lookup and always reads through.
func (d *webhookEventRepoCacheDecorator) FindByID(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	return d.inner.FindByID(ctx, eventID)
}

func (d *webhookEventRepoCacheDecorator) remember(ctx context.Context, eventID string, result model.EventResult) {
	if err := d.cache.Set(ctx, eventCacheKey(eventID), string(result), d.ttl); err != nil {
		d.log.Warn().Err(err).Str("event_id", eventID).Msg("ledger cache write failed")
	}
}
