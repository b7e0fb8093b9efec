package model

import (
	"time"

	"salon-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusError      SubscriptionStatus = "error"
)

// ParseSubscriptionStatus maps a provider status onto the local enum.
// Provider states without a local counterpart (unpaid, paused, incomplete_expired) collapse
// onto the closest one so a sync never stores an unknown value.
func ParseSubscriptionStatus(s string) SubscriptionStatus {
	switch s {
	case "active":
		return SubscriptionStatusActive
	case "trialing":
		return SubscriptionStatusTrialing
	case "past_due", "unpaid":
		return SubscriptionStatusPastDue
	case "canceled", "incomplete_expired":
		return SubscriptionStatusCanceled
	case "incomplete", "paused":
		return SubscriptionStatusIncomplete
	default:
		return SubscriptionStatusError
	}
}

type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodYearly  BillingPeriod = "yearly"
)

// ParseBillingPeriod maps a provider recurring interval ("month", "year") onto a BillingPeriod.
func ParseBillingPeriod(interval string) BillingPeriod {
	if interval == "year" {
		return BillingPeriodYearly
	}
	return BillingPeriodMonthly
}

// TenantSubscription is the local view of a tenant's billing relationship.
// Records are soft-terminated (status=canceled) and never hard-deleted.
type TenantSubscription struct {
	TenantID               string
	ProviderSubscriptionID string // globally unique
	ProviderCustomerID     string
	Status                 SubscriptionStatus
	PriceID                string
	PlanName               string
	BillingPeriod          BillingPeriod
	CurrentPeriodEnd       time.Time
	PaymentFailedAt        *time.Time
	LastTransactionID      string
	LastEventKey           IdempotencyKey
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Healthy reports whether the status is active or trialing.
func (s SubscriptionStatus) Healthy() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// IsActive reports whether the subscription currently entitles the tenant to discounts.
func (s *TenantSubscription) IsActive() bool {
	return s != nil && s.Status.Healthy()
}

// SubscriptionFields is the full-state payload written by a sync. Sync is an overwrite,
// never a delta, so applying the same fields twice is a no-op.
type SubscriptionFields struct {
	ProviderSubscriptionID string
	ProviderCustomerID     string
	Status                 SubscriptionStatus
	PriceID                string
	PlanName               string
	BillingPeriod          BillingPeriod
	CurrentPeriodEnd       time.Time
}

// Validate checks the fields a sync cannot do without.
func (f SubscriptionFields) Validate() error {
	if f.ProviderSubscriptionID == "" || f.ProviderCustomerID == "" || f.Status == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

// FieldsFromSnapshot derives sync fields from a provider snapshot.
func FieldsFromSnapshot(s *SubscriptionSnapshot) SubscriptionFields {
	return SubscriptionFields{
		ProviderSubscriptionID: s.ID,
		ProviderCustomerID:     s.CustomerID,
		Status:                 ParseSubscriptionStatus(s.Status),
		PriceID:                s.PriceID,
		PlanName:               s.PlanName,
		BillingPeriod:          ParseBillingPeriod(s.Interval),
		CurrentPeriodEnd:       s.CurrentPeriodEnd,
	}
}

// Matches reports whether applying f would leave s unchanged.
func (s *TenantSubscription) Matches(f SubscriptionFields) bool {
	return s.ProviderCustomerID == f.ProviderCustomerID &&
		s.Status == f.Status &&
		s.PriceID == f.PriceID &&
		s.PlanName == f.PlanName &&
		s.BillingPeriod == f.BillingPeriod &&
		s.CurrentPeriodEnd.Equal(f.CurrentPeriodEnd) &&
		(s.PaymentFailedAt == nil || !f.Status.Healthy())
}

// Apply overwrites s with f. A healthy status clears the payment failure stamp.
func (s *TenantSubscription) Apply(f SubscriptionFields) {
	s.ProviderCustomerID = f.ProviderCustomerID
	s.Status = f.Status
	s.PriceID = f.PriceID
	s.PlanName = f.PlanName
	s.BillingPeriod = f.BillingPeriod
	s.CurrentPeriodEnd = f.CurrentPeriodEnd
	if f.Status.Healthy() {
		s.PaymentFailedAt = nil
	}
}
