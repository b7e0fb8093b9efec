package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
)

// Skip reasons reported for tenants that fail an eligibility gate.
const (
	ReasonTenantNotFound      = "Tenant not found"
	ReasonNoActiveSub         = "No active subscription"
	ReasonNoCustomerID        = "No provider customer id"
	ReasonNoReferralRecord    = "Referral record not found"
	ReasonNoBalance           = "Referral count is 0 or negative"
	ReasonMaxReferrals        = "Total referral count exceeds maximum"
	ReasonAlreadyUpdatedMonth = "already updated this month"
)

// eligibleTenant is what a discount transaction needs once every gate has passed.
type eligibleTenant struct {
	tenant   *model.Tenant
	sub      *model.TenantSubscription
	referral *model.ReferralRecord
}

// checkEligibility evaluates the gates in order and stops at the first one that fails,
// returning its reason. A non-nil error is a store fault, not a skip.
func (p *ReferralDiscountProcessor) checkEligibility(ctx context.Context, email string, opts model.DiscountOptions, now time.Time) (*eligibleTenant, string, error) {
	tenant, err := p.tenants.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ReasonTenantNotFound, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("find tenant: %w", err)
	}

	sub, err := p.subs.FindByTenantID(ctx, tenant.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, "", fmt.Errorf("find subscription: %w", err)
	}
	if !sub.IsActive() {
		return nil, ReasonNoActiveSub, nil
	}
	if sub.ProviderCustomerID == "" {
		return nil, ReasonNoCustomerID, nil
	}

	rec, err := p.referrals.FindByCustomerID(ctx, sub.ProviderCustomerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ReasonNoReferralRecord, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("find referral: %w", err)
	}
	if rec.Balance <= 0 {
		return nil, ReasonNoBalance, nil
	}
	if !opts.IgnoreMaxCap && p.cfg.MaxReferrals > 0 && rec.TotalReferralCount >= p.cfg.MaxReferrals {
		return nil, ReasonMaxReferrals, nil
	}
	if !opts.ForceUpdated && model.SameMonth(rec.UpdatedAt, now) {
		return nil, ReasonAlreadyUpdatedMonth, nil
	}
	return &eligibleTenant{tenant: tenant, sub: sub, referral: rec}, "", nil
}
