package adapter

import (
	"context"

	"salon-billing/internal/domain/model"
)

// BillingProvider is the hex port for the external billing provider.
//
// Implementations must bound every call with a timeout and wrap retryable failures
// (rate limiting, 5xx, network, timeout) in domain.ErrTransient. A missing object
// is reported as domain.ErrNotFound.
type BillingProvider interface {
	Name() string

	GetCustomer(ctx context.Context, customerID string) (*model.ProviderCustomer, error)

	GetSubscription(ctx context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error)
	// ApplyCoupon attaches an existing coupon to the subscription.
	ApplyCoupon(ctx context.Context, subscriptionID, couponID string) error
	// CancelSubscription cancels the subscription immediately on the provider side.
	CancelSubscription(ctx context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error)

	CreateCoupon(ctx context.Context, spec model.CouponSpec) (couponID string, err error)
	DeleteCoupon(ctx context.Context, couponID string) error

	// UpcomingInvoice previews the customer's next invoice; used for verification only.
	UpcomingInvoice(ctx context.Context, customerID, subscriptionID string) (*model.InvoicePreview, error)
}
