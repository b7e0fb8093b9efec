// Package memory is an in-process implementation of the store ports, used in dev mode and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/repository"
)

var (
	_ repository.TenantRepository       = tenantView{}
	_ repository.SubscriptionRepository = subscriptionView{}
	_ repository.ReferralRepository     = referralView{}
	_ repository.WebhookEventRepository = eventView{}
)

type referralMarker struct {
	referralID string
	kind       model.ReferralTxKind
	month      string
	createdAt  time.Time
}

// Store keeps every record behind one mutex, which gives the per-record atomicity
// the ports require.
type Store struct {
	mu sync.RWMutex

	tenants       map[string]*model.Tenant
	subscriptions map[string]*model.TenantSubscription // provider subscription id
	referrals     map[string]*model.ReferralRecord
	markers       map[model.IdempotencyKey]referralMarker
	events        map[string]*model.WebhookEvent

	now func() time.Time
}

type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		tenants:       make(map[string]*model.Tenant),
		subscriptions: make(map[string]*model.TenantSubscription),
		referrals:     make(map[string]*model.ReferralRecord),
		markers:       make(map[model.IdempotencyKey]referralMarker),
		events:        make(map[string]*model.WebhookEvent),
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type (
	tenantView       struct{ *Store }
	subscriptionView struct{ *Store }
	referralView     struct{ *Store }
	eventView        struct{ *Store }
)

func (s *Store) Tenants() repository.TenantRepository             { return tenantView{s} }
func (s *Store) Subscriptions() repository.SubscriptionRepository { return subscriptionView{s} }
func (s *Store) Referrals() repository.ReferralRepository         { return referralView{s} }
func (s *Store) Events() repository.WebhookEventRepository        { return eventView{s} }

// --- seeding ---

func (s *Store) PutTenant(t *model.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	s.tenants[cp.ID] = &cp
}

func (s *Store) PutSubscription(sub *model.TenantSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = cp.CreatedAt
	}
	s.subscriptions[cp.ProviderSubscriptionID] = &cp
}

func (s *Store) PutReferral(r *model.ReferralRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	cp.Email = model.NormalizeEmail(cp.Email)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = cp.CreatedAt
	}
	s.referrals[cp.ID] = &cp
}

// --- tenants ---

func (s tenantView) FindByID(_ context.Context, id string) (*model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (s tenantView) FindByEmail(_ context.Context, email string) (*model.Tenant, error) {
	email = model.NormalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.Email == email {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s tenantView) FindByReferralCode(_ context.Context, code string) (*model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if code == "" {
		return nil, domain.ErrNotFound
	}
	for _, t := range s.tenants {
		if t.ReferralCode == code {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// --- subscriptions ---

// pickSubscription prefers a non-canceled record, then the most recently updated one.
func pickSubscription(subs []*model.TenantSubscription) *model.TenantSubscription {
	var best *model.TenantSubscription
	for _, sub := range subs {
		switch {
		case best == nil:
			best = sub
		case (best.Status == model.SubscriptionStatusCanceled) != (sub.Status == model.SubscriptionStatusCanceled):
			if sub.Status != model.SubscriptionStatusCanceled {
				best = sub
			}
		case sub.UpdatedAt.After(best.UpdatedAt):
			best = sub
		}
	}
	return best
}

func (s *Store) findSubscription(match func(*model.TenantSubscription) bool) (*model.TenantSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []*model.TenantSubscription
	for _, sub := range s.subscriptions {
		if match(sub) {
			hits = append(hits, sub)
		}
	}
	best := pickSubscription(hits)
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s subscriptionView) FindByCustomerID(_ context.Context, customerID string) (*model.TenantSubscription, error) {
	return s.findSubscription(func(sub *model.TenantSubscription) bool { return sub.ProviderCustomerID == customerID })
}

func (s subscriptionView) FindByTenantID(_ context.Context, tenantID string) (*model.TenantSubscription, error) {
	return s.findSubscription(func(sub *model.TenantSubscription) bool { return sub.TenantID == tenantID })
}

// Subscription returns the record for a provider subscription id.
func (s *Store) Subscription(subscriptionID string) (*model.TenantSubscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[subscriptionID]
	if !ok {
		return nil, false
	}
	cp := *sub
	return &cp, true
}

func (s subscriptionView) Sync(_ context.Context, tenantID string, f model.SubscriptionFields, key model.IdempotencyKey) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("sync subscription: %w", err)
	}
	if tenantID == "" {
		return fmt.Errorf("sync subscription: empty tenant id: %w", domain.ErrInvalidArgument)
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("sync subscription: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	sub, ok := s.subscriptions[f.ProviderSubscriptionID]
	if ok && sub.TenantID != tenantID {
		return fmt.Errorf("subscription %s belongs to another tenant: %w", f.ProviderSubscriptionID, domain.ErrAlreadyExists)
	}
	if !ok {
		sub = &model.TenantSubscription{TenantID: tenantID, ProviderSubscriptionID: f.ProviderSubscriptionID, CreatedAt: now}
		s.subscriptions[f.ProviderSubscriptionID] = sub
	}
	if ok && sub.Matches(f) {
		return nil
	}
	sub.Apply(f)
	sub.LastEventKey = key
	sub.UpdatedAt = now

	if f.Status != model.SubscriptionStatusCanceled {
		for id, other := range s.subscriptions {
			if id != f.ProviderSubscriptionID && other.TenantID == tenantID && other.Status != model.SubscriptionStatusCanceled {
				other.Status = model.SubscriptionStatusCanceled
				other.UpdatedAt = now
			}
		}
	}
	return nil
}

func (s subscriptionView) MarkPaymentFailed(_ context.Context, tenantID, subscriptionID, customerID string, txID model.IdempotencyKey) error {
	if err := txID.Validate(); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subscriptionID]
	if !ok {
		return fmt.Errorf("subscription %s: %w", subscriptionID, domain.ErrNotFound)
	}
	if sub.TenantID != tenantID || (customerID != "" && sub.ProviderCustomerID != customerID) {
		return fmt.Errorf("subscription %s does not match tenant/customer: %w", subscriptionID, domain.ErrInvalidArgument)
	}
	if sub.LastTransactionID == txID.String() {
		return nil
	}
	now := s.now()
	if sub.Status != model.SubscriptionStatusCanceled {
		sub.Status = model.SubscriptionStatusPastDue
	}
	sub.PaymentFailedAt = &now
	sub.LastTransactionID = txID.String()
	sub.UpdatedAt = now
	return nil
}

// --- referrals ---

func (s *Store) findReferral(match func(*model.ReferralRecord) bool) *model.ReferralRecord {
	for _, r := range s.referrals {
		if match(r) {
			return r
		}
	}
	return nil
}

func (s *Store) referralCopy(match func(*model.ReferralRecord) bool) (*model.ReferralRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.findReferral(match)
	if r == nil {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s referralView) FindByCustomerID(_ context.Context, customerID string) (*model.ReferralRecord, error) {
	return s.referralCopy(func(r *model.ReferralRecord) bool { return r.ProviderCustomerID == customerID })
}

func (s referralView) FindByTenantID(_ context.Context, tenantID string) (*model.ReferralRecord, error) {
	return s.referralCopy(func(r *model.ReferralRecord) bool { return r.TenantID == tenantID })
}

func (s referralView) IncrementCount(_ context.Context, referralID string, key model.IdempotencyKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, fmt.Errorf("increment referral count: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.markers[key]; seen {
		return false, nil
	}
	r, ok := s.referrals[referralID]
	if !ok {
		return false, fmt.Errorf("referral %s: %w", referralID, domain.ErrNotFound)
	}
	now := s.now()
	r.Balance++
	r.TotalReferralCount++
	r.UpdatedAt = now
	s.markers[key] = referralMarker{referralID: referralID, kind: model.ReferralTxIncrement, createdAt: now}
	return true, nil
}

func (s referralView) DecreaseBalance(_ context.Context, email string, txID model.IdempotencyKey, appliedMonth string) (model.DecrementResult, error) {
	if err := txID.Validate(); err != nil {
		return model.DecrementResult{}, fmt.Errorf("decrease referral balance: %w", err)
	}
	email = model.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.findReferral(func(r *model.ReferralRecord) bool { return r.Email == email })
	if _, seen := s.markers[txID]; seen {
		res := model.DecrementResult{Success: true, AlreadyProcessed: true, Message: "already processed"}
		if r != nil {
			res.Balance = r.Balance
		}
		return res, nil
	}
	if r == nil {
		return model.DecrementResult{Message: "referral record not found"}, nil
	}
	if r.Balance <= 0 {
		return model.DecrementResult{Message: "insufficient referral balance", Balance: r.Balance}, nil
	}
	now := s.now()
	r.Balance--
	r.LastAppliedMonth = appliedMonth
	r.UpdatedAt = now
	s.markers[txID] = referralMarker{referralID: r.ID, kind: model.ReferralTxDecrement, month: appliedMonth, createdAt: now}
	return model.DecrementResult{Success: true, Balance: r.Balance}, nil
}

func (s referralView) HasTransaction(_ context.Context, key model.IdempotencyKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, fmt.Errorf("check referral marker: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, seen := s.markers[key]
	return seen, nil
}

func (s referralView) EligibleTenantEmails(_ context.Context, includeUpdated, applyMaxCap bool, maxReferrals int, month string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, r := range s.referrals {
		if r.Balance <= 0 || r.Email == "" {
			continue
		}
		if !includeUpdated && model.MonthKey(r.UpdatedAt) == month {
			continue
		}
		if applyMaxCap && maxReferrals > 0 && r.TotalReferralCount >= maxReferrals {
			continue
		}
		out = append(out, r.Email)
	}
	sort.Strings(out)
	return out, nil
}

// --- webhook ledger ---

func (s eventView) CheckProcessed(_ context.Context, eventID string) (model.ProcessedStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[eventID]
	if !ok {
		return model.ProcessedStatus{}, nil
	}
	return model.ProcessedStatus{IsProcessed: ev.Result.IsTerminalProcessed(), Result: ev.Result}, nil
}

func (s eventView) Record(_ context.Context, eventID, eventType string, result model.EventResult) error {
	if eventID == "" {
		return fmt.Errorf("record event: empty id: %w", domain.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	ev, ok := s.events[eventID]
	if !ok {
		ev = &model.WebhookEvent{EventID: eventID, FirstSeenAt: now}
		s.events[eventID] = ev
	}
	ev.EventType = eventType
	ev.Result = result
	ev.ErrorMessage = ""
	ev.Attempts++
	ev.UpdatedAt = now
	return nil
}

func (s eventView) UpdateResult(_ context.Context, eventID string, result model.EventResult, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
	}
	ev.Result = result
	ev.ErrorMessage = errMsg
	ev.UpdatedAt = s.now()
	return nil
}

func (s eventView) FindByID(_ context.Context, eventID string) (*model.WebhookEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

// Referral returns a copy of the referral record with the given id.
func (s *Store) Referral(id string) (*model.ReferralRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.referrals[id]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// EventCount is the number of ledger records.
func (s *Store) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
