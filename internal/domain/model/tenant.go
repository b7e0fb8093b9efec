package model

import (
	"strings"
	"time"

	"salon-billing/internal/domain"
)

// Tenant is a salon account. Subscriptions and referral records hang off it.
type Tenant struct {
	ID           string
	Name         string
	Email        string
	ReferralCode string // code other tenants enter at signup; empty if none issued
	CreatedAt    time.Time
}

// NewTenant constructs and validates a Tenant.
func NewTenant(id, name, email, referralCode string) (*Tenant, error) {
	email = NormalizeEmail(email)
	if id == "" || email == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Tenant{
		ID:           id,
		Name:         name,
		Email:        email,
		ReferralCode: strings.TrimSpace(referralCode),
		CreatedAt:    time.Now(),
	}, nil
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
