package model

import "time"

// Provider event types handled by the dispatcher.
const (
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
)

// SubscriptionSnapshot is the provider-side state of a subscription at one point in time.
type SubscriptionSnapshot struct {
	ID               string
	CustomerID       string
	Status           string // provider status string
	PriceID          string
	PlanName         string
	Interval         string // month | year
	CurrentPeriodEnd time.Time
	Metadata         map[string]string
}

// InvoiceSnapshot carries the invoice fields the dispatcher routes on.
type InvoiceSnapshot struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	AmountDue      int64
	Currency       string
	Status         string
}

// BillingEvent is a provider event whose signature was already verified.
// Exactly one of Subscription or Invoice is set for the handled types.
type BillingEvent struct {
	ID           string
	Type         string
	Created      time.Time
	Subscription *SubscriptionSnapshot
	Invoice      *InvoiceSnapshot
}

// ProviderCustomer is a provider customer record.
type ProviderCustomer struct {
	ID       string
	Email    string
	Metadata map[string]string
}

// ReferralCodeMetadataKey is the customer metadata key carrying a redeemed referral code.
const ReferralCodeMetadataKey = "referral_code"

// TenantIDMetadataKey is the subscription metadata key carrying the owning tenant id.
const TenantIDMetadataKey = "tenant_id"

// CouponDuration mirrors the provider's coupon duration modes.
type CouponDuration string

const (
	CouponDurationOnce    CouponDuration = "once"
	CouponDurationForever CouponDuration = "forever"
)

// CouponSpec describes a coupon to create on the provider.
type CouponSpec struct {
	ID          string
	AmountOff   int64 // minor currency units
	Currency    string
	Duration    CouponDuration
	Name        string
	Description string
	Metadata    map[string]string
}

// InvoicePreview is the provider's preview of a customer's next invoice.
type InvoicePreview struct {
	CustomerID string
	AmountDue  int64
	Currency   string
	Discounted bool
}
