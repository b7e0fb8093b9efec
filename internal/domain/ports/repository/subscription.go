package repository

import (
	"context"

	"salon-billing/internal/domain/model"
)

// SubscriptionRepository is the port for tenant subscriptions.
type SubscriptionRepository interface {
	// FindByCustomerID returns the most recently updated subscription for a provider customer.
	FindByCustomerID(ctx context.Context, customerID string) (*model.TenantSubscription, error)
	// FindByTenantID returns the tenant's current (non-canceled first) subscription.
	FindByTenantID(ctx context.Context, tenantID string) (*model.TenantSubscription, error)

	// Sync overwrites the record keyed by provider subscription id with the given full state.
	// A non-canceled sync soft-cancels any other non-canceled record of the same tenant.
	Sync(ctx context.Context, tenantID string, f model.SubscriptionFields, key model.IdempotencyKey) error
	// MarkPaymentFailed moves the subscription to past_due and stamps the transaction id.
	MarkPaymentFailed(ctx context.Context, tenantID, subscriptionID, customerID string, txID model.IdempotencyKey) error
}
