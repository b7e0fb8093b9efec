package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/adapter"
	"salon-billing/internal/domain/ports/repository"
	"salon-billing/internal/domain/ports/usecase"
	"salon-billing/internal/infra/logging"
	"salon-billing/internal/infra/retry"
)

var _ usecase.SubscriptionCanceler = (*SubscriptionAdmin)(nil)

// SubscriptionAdmin serves operator actions on subscriptions.
type SubscriptionAdmin struct {
	subs     repository.SubscriptionRepository
	provider adapter.BillingProvider
	retry    *retry.Retrier
	log      *zerolog.Logger
}

func NewSubscriptionAdmin(subs repository.SubscriptionRepository, provider adapter.BillingProvider, retrier *retry.Retrier, logger *zerolog.Logger) *SubscriptionAdmin {
	if retrier == nil {
		retrier = retry.New(retry.DefaultPolicy(), logger)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "subscription_admin").Logger()
	return &SubscriptionAdmin{subs: subs, provider: provider, retry: retrier, log: &l}
}

// Cancel cancels the subscription immediately on the provider. The local record is
// synced right away; the provider's deleted event later replays the same state.
func (a *SubscriptionAdmin) Cancel(ctx context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error) {
	defer logging.TraceDuration(a.log, "SubscriptionAdmin.Cancel")()
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, fmt.Errorf("cancel subscription: empty id: %w", domain.ErrInvalidArgument)
	}
	log := logging.With(ctx, a.log).With().Str("subscription_id", subscriptionID).Logger()

	snap, err := retry.Value(ctx, a.retry, "cancel_subscription", func(ctx context.Context) (*model.SubscriptionSnapshot, error) {
		return a.provider.CancelSubscription(ctx, subscriptionID)
	})
	if err != nil {
		return nil, fmt.Errorf("cancel subscription %s: %w", subscriptionID, err)
	}

	tenantID := strings.TrimSpace(snap.Metadata[model.TenantIDMetadataKey])
	if tenantID == "" && snap.CustomerID != "" {
		local, ferr := a.subs.FindByCustomerID(ctx, snap.CustomerID)
		switch {
		case ferr == nil:
			tenantID = local.TenantID
		case !errors.Is(ferr, domain.ErrNotFound):
			log.Warn().Err(ferr).Msg("tenant lookup failed, local record left to the webhook")
		}
	}
	if tenantID == "" {
		log.Info().Msg("subscription canceled on provider; no local tenant")
		return snap, nil
	}

	f := model.FieldsFromSnapshot(snap)
	f.Status = model.SubscriptionStatusCanceled
	key := model.NewTransactionKey("admin_cancel")
	err = a.retry.Do(ctx, "sync_subscription", func(ctx context.Context) error {
		return a.subs.Sync(ctx, tenantID, f, key)
	})
	if err != nil {
		log.Warn().Err(err).Msg("local sync after cancel failed, webhook will reconcile")
	} else {
		log.Info().Str("tenant_id", tenantID).Msg("subscription canceled")
	}
	return snap, nil
}
