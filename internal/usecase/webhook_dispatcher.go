package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/adapter"
	"salon-billing/internal/domain/ports/repository"
	"salon-billing/internal/domain/ports/usecase"
	"salon-billing/internal/infra/logging"
	"salon-billing/internal/infra/retry"
)

// Compile-time check
var _ usecase.EventDispatcher = (*WebhookDispatcher)(nil)

// eventHandler applies one event type. Benign conditions (unknown tenant, one-off invoice)
// return EventResultSkipped with a nil error.
type eventHandler func(ctx context.Context, ev *model.BillingEvent, log *zerolog.Logger) (model.EventResult, error)

// WebhookDispatcher applies verified provider events to tenant state exactly once.
//
// Per event: check ledger -> record processing -> route by type -> record terminal result.
// The terminal result is recorded on every path, panics included, and handler errors are
// returned so the provider redelivers.
type WebhookDispatcher struct {
	ledger    *EventLedger
	tenants   repository.TenantRepository
	subs      repository.SubscriptionRepository
	referrals repository.ReferralRepository
	provider  adapter.BillingProvider
	retry     *retry.Retrier
	obs       DispatchObserver
	log       *zerolog.Logger

	handlers map[string]eventHandler
}

type DispatcherOption func(*WebhookDispatcher)

func WithDispatchObserver(o DispatchObserver) DispatcherOption {
	return func(d *WebhookDispatcher) {
		if o != nil {
			d.obs = o
		}
	}
}

func NewWebhookDispatcher(
	ledger *EventLedger,
	tenants repository.TenantRepository,
	subs repository.SubscriptionRepository,
	referrals repository.ReferralRepository,
	provider adapter.BillingProvider,
	retrier *retry.Retrier,
	logger *zerolog.Logger,
	opts ...DispatcherOption,
) *WebhookDispatcher {
	l := logger.With().Str("component", "webhook_dispatcher").Logger()
	d := &WebhookDispatcher{
		ledger:    ledger,
		tenants:   tenants,
		subs:      subs,
		referrals: referrals,
		provider:  provider,
		retry:     retrier,
		obs:       nopObserver{},
		log:       &l,
	}
	d.handlers = map[string]eventHandler{
		model.EventSubscriptionCreated:     d.handleSubscriptionCreated,
		model.EventSubscriptionUpdated:     d.handleSubscriptionUpdated,
		model.EventSubscriptionDeleted:     d.handleSubscriptionDeleted,
		model.EventInvoicePaymentSucceeded: d.handleInvoicePaymentSucceeded,
		model.EventInvoicePaymentFailed:    d.handleInvoicePaymentFailed,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch applies ev. A replay of an already processed event id is a no-op reported
// with AlreadyProcessed set.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, ev *model.BillingEvent) (usecase.DispatchResult, error) {
	if ev == nil || ev.ID == "" {
		return usecase.DispatchResult{}, fmt.Errorf("dispatch: missing event id: %w", domain.ErrInvalidArgument)
	}
	defer logging.TraceDuration(d.log, "WebhookDispatcher.Dispatch")()
	start := time.Now()
	ctx = logging.WithEventID(ctx, ev.ID)
	log := logging.With(ctx, d.log).With().Str("event_type", ev.Type).Logger()

	status, err := d.ledger.CheckProcessed(ctx, ev.ID)
	if err != nil {
		return usecase.DispatchResult{EventID: ev.ID}, fmt.Errorf("check processed %s: %w", ev.ID, err)
	}
	if status.IsProcessed {
		log.Info().Str("result", string(status.Result)).Msg("event already processed")
		d.obs.ObserveDispatch(ev.Type, status.Result, true, time.Since(start))
		return usecase.DispatchResult{
			EventID:          ev.ID,
			AlreadyProcessed: true,
			Result:           status.Result,
			Message:          fmt.Sprintf("event already processed with result %s", status.Result),
		}, nil
	}

	d.ledger.RecordStart(ctx, ev.ID, ev.Type)
	result, herr := d.route(ctx, ev, &log)

	msg := ""
	if herr != nil {
		result = model.EventResultError
		msg = herr.Error()
	}
	d.ledger.RecordResult(ctx, ev.ID, result, msg)
	d.obs.ObserveDispatch(ev.Type, result, false, time.Since(start))

	if herr != nil {
		log.Error().Err(herr).Msg("event handling failed")
		return usecase.DispatchResult{EventID: ev.ID, Result: result, Message: msg}, herr
	}
	log.Info().Str("result", string(result)).Dur("took", time.Since(start)).Msg("event handled")
	return usecase.DispatchResult{EventID: ev.ID, Result: result}, nil
}

func (d *WebhookDispatcher) route(ctx context.Context, ev *model.BillingEvent, log *zerolog.Logger) (result model.EventResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = model.EventResultError, fmt.Errorf("panic handling %s: %v", ev.Type, r)
		}
	}()
	h, ok := d.handlers[ev.Type]
	if !ok {
		log.Debug().Msg("no handler for event type")
		return model.EventResultSkipped, nil
	}
	return h(ctx, ev, log)
}
