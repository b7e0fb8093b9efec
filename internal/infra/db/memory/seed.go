package memory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"salon-billing/internal/domain/model"
)

// Seed is the YAML fixture format accepted by LoadSeed.
type Seed struct {
	Tenants       []SeedTenant       `yaml:"tenants"`
	Subscriptions []SeedSubscription `yaml:"subscriptions"`
	Referrals     []SeedReferral     `yaml:"referrals"`
}

type SeedTenant struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	ReferralCode string `yaml:"referral_code"`
}

type SeedSubscription struct {
	TenantID         string    `yaml:"tenant_id"`
	SubscriptionID   string    `yaml:"subscription_id"`
	CustomerID       string    `yaml:"customer_id"`
	Status           string    `yaml:"status"`
	PriceID          string    `yaml:"price_id"`
	PlanName         string    `yaml:"plan_name"`
	BillingPeriod    string    `yaml:"billing_period"`
	CurrentPeriodEnd time.Time `yaml:"current_period_end"`
}

type SeedReferral struct {
	ID         string    `yaml:"id"`
	TenantID   string    `yaml:"tenant_id"`
	Email      string    `yaml:"email"`
	CustomerID string    `yaml:"customer_id"`
	Balance    int       `yaml:"balance"`
	Total      int       `yaml:"total_referral_count"`
	UpdatedAt  time.Time `yaml:"updated_at"`
}

// ReadSeed parses a YAML fixture file.
func ReadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// LoadSeed reads a YAML fixture into the store. Used by dev mode.
func (s *Store) LoadSeed(path string) error {
	seed, err := ReadSeed(path)
	if err != nil {
		return err
	}
	return s.ApplySeed(seed)
}

func (s *Store) ApplySeed(seed *Seed) error {
	for _, t := range seed.Tenants {
		tn, err := model.NewTenant(t.ID, t.Name, t.Email, t.ReferralCode)
		if err != nil {
			return fmt.Errorf("seed tenant %q: %w", t.ID, err)
		}
		s.PutTenant(tn)
	}
	for _, sub := range seed.Subscriptions {
		period := model.BillingPeriod(sub.BillingPeriod)
		if period == "" {
			period = model.BillingPeriodMonthly
		}
		s.PutSubscription(&model.TenantSubscription{
			TenantID:               sub.TenantID,
			ProviderSubscriptionID: sub.SubscriptionID,
			ProviderCustomerID:     sub.CustomerID,
			Status:                 model.ParseSubscriptionStatus(sub.Status),
			PriceID:                sub.PriceID,
			PlanName:               sub.PlanName,
			BillingPeriod:          period,
			CurrentPeriodEnd:       sub.CurrentPeriodEnd,
		})
	}
	for _, r := range seed.Referrals {
		s.PutReferral(&model.ReferralRecord{
			ID:                 r.ID,
			TenantID:           r.TenantID,
			Email:              r.Email,
			ProviderCustomerID: r.CustomerID,
			Balance:            r.Balance,
			TotalReferralCount: r.Total,
			UpdatedAt:          r.UpdatedAt,
		})
	}
	return nil
}
