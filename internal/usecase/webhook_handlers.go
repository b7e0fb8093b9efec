package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/infra/retry"
)

// errUnknownTenant marks events that belong to no local tenant.
var errUnknownTenant = errors.New("no tenant for billing event")

// resolveTenant finds the owner of a subscription: the tenant_id metadata stamped at
// checkout first, then any subscription already stored for the customer.
func (d *WebhookDispatcher) resolveTenant(ctx context.Context, sub *model.SubscriptionSnapshot) (string, error) {
	if id := strings.TrimSpace(sub.Metadata[model.TenantIDMetadataKey]); id != "" {
		t, err := d.tenants.FindByID(ctx, id)
		switch {
		case err == nil:
			return t.ID, nil
		case !errors.Is(err, domain.ErrNotFound):
			return "", fmt.Errorf("find tenant %s: %w", id, err)
		}
	}
	return d.tenantByCustomer(ctx, sub.CustomerID)
}

func (d *WebhookDispatcher) tenantByCustomer(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", errUnknownTenant
	}
	local, err := d.subs.FindByCustomerID(ctx, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", errUnknownTenant
	}
	if err != nil {
		return "", fmt.Errorf("find subscription by customer %s: %w", customerID, err)
	}
	return local.TenantID, nil
}

func (d *WebhookDispatcher) sync(ctx context.Context, tenantID string, f model.SubscriptionFields, key model.IdempotencyKey) error {
	err := d.retry.Do(ctx, "sync_subscription", func(ctx context.Context) error {
		return d.subs.Sync(ctx, tenantID, f, key)
	})
	if err != nil {
		return fmt.Errorf("sync subscription %s: %w", f.ProviderSubscriptionID, err)
	}
	return nil
}

// currentSnapshot re-fetches the subscription so the sync reflects the provider's current
// state rather than the event's. The payload is used when the provider no longer has it.
func (d *WebhookDispatcher) currentSnapshot(ctx context.Context, subscriptionID string, payload *model.SubscriptionSnapshot) (*model.SubscriptionSnapshot, error) {
	snap, err := retry.Value(ctx, d.retry, "get_subscription", func(ctx context.Context) (*model.SubscriptionSnapshot, error) {
		return d.provider.GetSubscription(ctx, subscriptionID)
	})
	if errors.Is(err, domain.ErrNotFound) && payload != nil {
		return payload, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}
	return snap, nil
}

func skipUnknownTenant(err error, log *zerolog.Logger) (model.EventResult, error) {
	if errors.Is(err, errUnknownTenant) {
		log.Info().Msg("no tenant for event, skipping")
		return model.EventResultSkipped, nil
	}
	return model.EventResultError, err
}

func (d *WebhookDispatcher) handleSubscriptionCreated(ctx context.Context, ev *model.BillingEvent, log *zerolog.Logger) (model.EventResult, error) {
	sub := ev.Subscription
	if sub == nil {
		return model.EventResultError, fmt.Errorf("%s without subscription payload: %w", ev.Type, domain.ErrInvalidArgument)
	}
	tenantID, err := d.resolveTenant(ctx, sub)
	if err != nil {
		return skipUnknownTenant(err, log)
	}
	// a late created event must not revive a subscription that was canceled since
	snap, err := d.currentSnapshot(ctx, sub.ID, sub)
	if err != nil {
		return model.EventResultError, err
	}
	if err := d.sync(ctx, tenantID, model.FieldsFromSnapshot(snap), model.EventKey(ev.ID)); err != nil {
		return model.EventResultError, err
	}
	d.redeemReferral(ctx, ev.ID, tenantID, sub.CustomerID, log)
	return model.EventResultSuccess, nil
}

// redeemReferral credits the tenant whose referral code the new customer signed up with.
// It never fails the event; the increment is keyed by the event id so a redelivery after
// a crash cannot credit twice.
func (d *WebhookDispatcher) redeemReferral(ctx context.Context, eventID, tenantID, customerID string, log *zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("referral redemption panicked")
		}
	}()
	if customerID == "" {
		return
	}
	cust, err := d.provider.GetCustomer(ctx, customerID)
	if err != nil {
		log.Warn().Err(err).Str("customer_id", customerID).Msg("referral: failed to load customer")
		return
	}
	code := strings.TrimSpace(cust.Metadata[model.ReferralCodeMetadataKey])
	if code == "" {
		return
	}
	referrer, err := d.tenants.FindByReferralCode(ctx, code)
	if err != nil {
		log.Warn().Err(err).Str("referral_code", code).Msg("referral: code does not resolve to a tenant")
		return
	}
	if referrer.ID == tenantID {
		log.Warn().Str("referral_code", code).Msg("referral: self-referral ignored")
		return
	}
	rec, err := d.referrals.FindByTenantID(ctx, referrer.ID)
	if err != nil {
		log.Warn().Err(err).Str("referrer_id", referrer.ID).Msg("referral: no referral record for referrer")
		return
	}
	applied, err := retry.Value(ctx, d.retry, "increment_referral_count", func(ctx context.Context) (bool, error) {
		return d.referrals.IncrementCount(ctx, rec.ID, model.EventKey(eventID))
	})
	if err != nil {
		log.Error().Err(err).Str("referral_id", rec.ID).Msg("referral: increment failed")
		return
	}
	log.Info().Str("referral_id", rec.ID).Bool("applied", applied).Msg("referral redeemed")
}

func (d *WebhookDispatcher) handleSubscriptionUpdated(ctx context.Context, ev *model.BillingEvent, log *zerolog.Logger) (model.EventResult, error) {
	sub := ev.Subscription
	if sub == nil {
		return model.EventResultError, fmt.Errorf("%s without subscription payload: %w", ev.Type, domain.ErrInvalidArgument)
	}
	tenantID, err := d.resolveTenant(ctx, sub)
	if err != nil {
		return skipUnknownTenant(err, log)
	}
	snap, err := d.currentSnapshot(ctx, sub.ID, sub)
	if err != nil {
		return model.EventResultError, err
	}
	if err := d.sync(ctx, tenantID, model.FieldsFromSnapshot(snap), model.EventKey(ev.ID)); err != nil {
		return model.EventResultError, err
	}
	return model.EventResultSuccess, nil
}

func (d *WebhookDispatcher) handleSubscriptionDeleted(ctx context.Context, ev *model.BillingEvent, log *zerolog.Logger) (model.EventResult, error) {
	sub := ev.Subscription
	if sub == nil {
		return model.EventResultError, fmt.Errorf("%s without subscription payload: %w", ev.Type, domain.ErrInvalidArgument)
	}
	tenantID, err := d.resolveTenant(ctx, sub)
	if err != nil {
		return skipUnknownTenant(err, log)
	}
	snap, err := d.currentSnapshot(ctx, sub.ID, sub)
	if err != nil {
		return model.EventResultError, err
	}
	f := model.FieldsFromSnapshot(snap)
	f.Status = model.SubscriptionStatusCanceled
	if err := d.sync(ctx, tenantID, f, model.EventKey(ev.ID)); err != nil {
		return model.EventResultError, err
	}
	return model.EventResultSuccess, nil
}

func (d *WebhookDispatcher) handleInvoicePaymentSucceeded(ctx context.Context, ev *model.BillingEvent, log *zerolog.Logger) (model.EventResult, error) {
	inv := ev.Invoice
	if inv == nil {
		return model.EventResultError, fmt.Errorf("%s without invoice payload: %w", ev.Type, domain.ErrInvalidArgument)
	}
	if inv.SubscriptionID == "" {
		log.Debug().Str("invoice_id", inv.ID).Msg("invoice has no subscription, skipping")
		return model.EventResultSkipped, nil
	}
	tenantID, err := d.tenantByCustomer(ctx, inv.CustomerID)
	if err != nil {
		return skipUnknownTenant(err, log)
	}
	snap, err := d.currentSnapshot(ctx, inv.SubscriptionID, nil)
	if err != nil {
		return model.EventResultError, err
	}
	if err := d.sync(ctx, tenantID, model.FieldsFromSnapshot(snap), model.EventKey(ev.ID)); err != nil {
		return model.EventResultError, err
	}
	return model.EventResultSuccess, nil
}

// handleInvoicePaymentFailed stamps the failure with a fresh transaction id, so it cannot be
// confused with a success event for the same invoice arriving concurrently.
func (d *WebhookDispatcher) handleInvoicePaymentFailed(ctx context.Context, ev *model.BillingEvent, log *zerolog.Logger) (model.EventResult, error) {
	inv := ev.Invoice
	if inv == nil {
		return model.EventResultError, fmt.Errorf("%s without invoice payload: %w", ev.Type, domain.ErrInvalidArgument)
	}
	if inv.SubscriptionID == "" {
		log.Debug().Str("invoice_id", inv.ID).Msg("invoice has no subscription, skipping")
		return model.EventResultSkipped, nil
	}
	tenantID, err := d.tenantByCustomer(ctx, inv.CustomerID)
	if err != nil {
		return skipUnknownTenant(err, log)
	}
	txID := model.NewTransactionKey("payment_failed")
	err = d.retry.Do(ctx, "mark_payment_failed", func(ctx context.Context) error {
		return d.subs.MarkPaymentFailed(ctx, tenantID, inv.SubscriptionID, inv.CustomerID, txID)
	})
	if errors.Is(err, domain.ErrNotFound) {
		log.Info().Str("subscription_id", inv.SubscriptionID).Msg("failed payment for unknown subscription, skipping")
		return model.EventResultSkipped, nil
	}
	if err != nil {
		return model.EventResultError, fmt.Errorf("mark payment failed %s: %w", inv.SubscriptionID, err)
	}
	log.Info().Str("subscription_id", inv.SubscriptionID).Str("transaction_id", txID.String()).Msg("payment failure recorded")
	return model.EventResultSuccess, nil
}
