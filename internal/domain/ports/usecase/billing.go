package usecase

import (
	"context"

	"salon-billing/internal/domain/model"
)

// DispatchResult is what the webhook endpoint reports back to the provider.
type DispatchResult struct {
	EventID          string
	AlreadyProcessed bool
	Result           model.EventResult
	Message          string
}

// EventDispatcher applies verified provider events exactly once.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev *model.BillingEvent) (DispatchResult, error)
}

// DiscountRunner runs the referral discount batch. It is used by the HTTP admin
// surface, the CLI and the periodic worker.
type DiscountRunner interface {
	Run(ctx context.Context, opts model.DiscountOptions) (*model.DiscountReport, error)
}

// EventLookup exposes ledger records to operators.
type EventLookup interface {
	Get(ctx context.Context, eventID string) (*model.WebhookEvent, error)
}

// SubscriptionCanceler cancels a subscription on the provider and mirrors it locally.
type SubscriptionCanceler interface {
	Cancel(ctx context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error)
}
