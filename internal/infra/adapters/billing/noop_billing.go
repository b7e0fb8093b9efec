package billing

import (
	"context"
	"fmt"
	"sync"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/adapter"
)

var _ adapter.BillingProvider = (*NoopProvider)(nil)

// NoopProvider is an in-memory provider for dev mode. Coupons live until deleted;
// customers and subscriptions must be registered up front.
type NoopProvider struct {
	mu            sync.Mutex
	seq           int64
	customers     map[string]*model.ProviderCustomer
	subscriptions map[string]*model.SubscriptionSnapshot
	coupons       map[string]model.CouponSpec
	applied       map[string]string // subscription -> coupon
}

func NewNoopProvider() *NoopProvider {
	return &NoopProvider{
		customers:     make(map[string]*model.ProviderCustomer),
		subscriptions: make(map[string]*model.SubscriptionSnapshot),
		coupons:       make(map[string]model.CouponSpec),
		applied:       make(map[string]string),
	}
}

func (p *NoopProvider) Name() string { return "noop" }

func (p *NoopProvider) AddCustomer(c model.ProviderCustomer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customers[c.ID] = &c
}

func (p *NoopProvider) AddSubscription(s model.SubscriptionSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions[s.ID] = &s
}

func (p *NoopProvider) GetCustomer(_ context.Context, customerID string) (*model.ProviderCustomer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.customers[customerID]
	if !ok {
		return nil, fmt.Errorf("noop: customer %s: %w", customerID, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (p *NoopProvider) GetSubscription(_ context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("noop: subscription %s: %w", subscriptionID, domain.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (p *NoopProvider) ApplyCoupon(_ context.Context, subscriptionID, couponID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.coupons[couponID]; !ok {
		return fmt.Errorf("noop: coupon %s: %w", couponID, domain.ErrNotFound)
	}
	p.applied[subscriptionID] = couponID
	return nil
}

func (p *NoopProvider) CancelSubscription(_ context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("noop: subscription %s: %w", subscriptionID, domain.ErrNotFound)
	}
	s.Status = string(model.SubscriptionStatusCanceled)
	cp := *s
	return &cp, nil
}

func (p *NoopProvider) CreateCoupon(_ context.Context, spec model.CouponSpec) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if spec.ID == "" {
		p.seq++
		spec.ID = fmt.Sprintf("noop-coupon-%d", p.seq)
	}
	if _, ok := p.coupons[spec.ID]; ok {
		return "", fmt.Errorf("noop: coupon %s: %w", spec.ID, domain.ErrAlreadyExists)
	}
	p.coupons[spec.ID] = spec
	return spec.ID, nil
}

func (p *NoopProvider) DeleteCoupon(_ context.Context, couponID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.coupons[couponID]; !ok {
		return fmt.Errorf("noop: coupon %s: %w", couponID, domain.ErrNotFound)
	}
	delete(p.coupons, couponID)
	return nil
}

func (p *NoopProvider) UpcomingInvoice(_ context.Context, customerID, subscriptionID string) (*model.InvoicePreview, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, discounted := p.applied[subscriptionID]
	return &model.InvoicePreview{CustomerID: customerID, Discounted: discounted}, nil
}

// LiveCoupons reports how many coupons were created and not yet deleted.
func (p *NoopProvider) LiveCoupons() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.coupons)
}
