package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/repository"
	"salon-billing/internal/domain/ports/usecase"
)

var _ usecase.EventLookup = (*EventLedger)(nil)

// ledgerWriteTimeout bounds result writes that run after the request context may be gone.
const ledgerWriteTimeout = 5 * time.Second

// EventLedger is the idempotency gate in front of the webhook handlers.
//
// Only CheckProcessed reports store errors. Writes are best effort: a failed write is
// logged, because the provider redelivers anything that did not get a 2xx and the
// handlers are idempotent on their own.
type EventLedger struct {
	events repository.WebhookEventRepository
	log    *zerolog.Logger
}

func NewEventLedger(events repository.WebhookEventRepository, logger *zerolog.Logger) *EventLedger {
	l := logger.With().Str("component", "event_ledger").Logger()
	return &EventLedger{events: events, log: &l}
}

func (l *EventLedger) CheckProcessed(ctx context.Context, eventID string) (model.ProcessedStatus, error) {
	return l.events.CheckProcessed(ctx, eventID)
}

// RecordStart marks the event as processing. A record left over by a crashed attempt is reused.
func (l *EventLedger) RecordStart(ctx context.Context, eventID, eventType string) {
	if err := l.events.Record(ctx, eventID, eventType, model.EventResultProcessing); err != nil {
		l.log.Error().Err(err).Str("event_id", eventID).Str("event_type", eventType).Msg("failed to record event start")
	}
}

// RecordResult moves the event to a terminal state. It runs detached from ctx cancellation
// so a client disconnect cannot leave the record in processing.
func (l *EventLedger) RecordResult(ctx context.Context, eventID string, result model.EventResult, errMsg string) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()
	if err := l.events.UpdateResult(wctx, eventID, result, errMsg); err != nil {
		l.log.Error().Err(err).Str("event_id", eventID).Str("result", string(result)).Msg("failed to record event result")
	}
}

func (l *EventLedger) Get(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	return l.events.FindByID(ctx, eventID)
}
