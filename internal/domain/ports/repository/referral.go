package repository

import (
	"context"

	"salon-billing/internal/domain/model"
)

// ReferralRepository is the port for referral records and their transaction markers.
type ReferralRepository interface {
	FindByCustomerID(ctx context.Context, customerID string) (*model.ReferralRecord, error)
	FindByTenantID(ctx context.Context, tenantID string) (*model.ReferralRecord, error)

	// IncrementCount credits one referral (balance and lifetime total). Replaying the same key is a no-op.
	IncrementCount(ctx context.Context, referralID string, key model.IdempotencyKey) (applied bool, err error)
	// DecreaseBalance debits one unit for appliedMonth. A replayed transaction id reports AlreadyProcessed.
	// A non-positive balance reports Success=false without error.
	DecreaseBalance(ctx context.Context, email string, txID model.IdempotencyKey, appliedMonth string) (model.DecrementResult, error)
	// HasTransaction reports whether a marker for key was already written.
	HasTransaction(ctx context.Context, key model.IdempotencyKey) (bool, error)

	// EligibleTenantEmails lists emails of tenants with a positive balance.
	// includeUpdated keeps tenants already discounted this month; applyMaxCap drops tenants
	// whose total referral count reached maxReferrals.
	EligibleTenantEmails(ctx context.Context, includeUpdated, applyMaxCap bool, maxReferrals int, month string) ([]string, error)
}
