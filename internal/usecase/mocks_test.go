package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/adapter"
	"salon-billing/internal/domain/ports/repository"
	"salon-billing/internal/infra/db/memory"
	"salon-billing/internal/infra/retry"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestRetrier() *retry.Retrier {
	return retry.New(retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}, nil)
}

func newTestStore() *memory.Store {
	return memory.New(memory.WithClock(func() time.Time { return testNow }))
}

// --- billing provider ---

var _ adapter.BillingProvider = (*fakeProvider)(nil)

// fakeProvider keeps provider objects in maps and records every side-effecting call.
// Func fields override single operations.
type fakeProvider struct {
	mu        sync.Mutex
	customers map[string]*model.ProviderCustomer
	subs      map[string]*model.SubscriptionSnapshot
	coupons   map[string]model.CouponSpec

	created  []string
	applied  []string // subscriptionID + "/" + couponID
	deleted  []string
	previews int

	GetCustomerFunc     func(ctx context.Context, customerID string) (*model.ProviderCustomer, error)
	GetSubscriptionFunc func(ctx context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error)
	CreateCouponFunc    func(ctx context.Context, spec model.CouponSpec) (string, error)
	ApplyCouponFunc     func(ctx context.Context, subscriptionID, couponID string) error
	DeleteCouponFunc    func(ctx context.Context, couponID string) error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customers: make(map[string]*model.ProviderCustomer),
		subs:      make(map[string]*model.SubscriptionSnapshot),
		coupons:   make(map[string]model.CouponSpec),
	}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) GetCustomer(ctx context.Context, customerID string) (*model.ProviderCustomer, error) {
	if f.GetCustomerFunc != nil {
		return f.GetCustomerFunc(ctx, customerID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[customerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error) {
	if f.GetSubscriptionFunc != nil {
		return f.GetSubscriptionFunc(ctx, subscriptionID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[subscriptionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeProvider) ApplyCoupon(ctx context.Context, subscriptionID, couponID string) error {
	if f.ApplyCouponFunc != nil {
		if err := f.ApplyCouponFunc(ctx, subscriptionID, couponID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, subscriptionID+"/"+couponID)
	return nil
}

func (f *fakeProvider) CancelSubscription(ctx context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[subscriptionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	s.Status = "canceled"
	cp := *s
	return &cp, nil
}

func (f *fakeProvider) CreateCoupon(ctx context.Context, spec model.CouponSpec) (string, error) {
	if f.CreateCouponFunc != nil {
		if _, err := f.CreateCouponFunc(ctx, spec); err != nil {
			return "", err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coupons[spec.ID] = spec
	f.created = append(f.created, spec.ID)
	return spec.ID, nil
}

func (f *fakeProvider) DeleteCoupon(ctx context.Context, couponID string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, couponID)
	f.mu.Unlock()
	if f.DeleteCouponFunc != nil {
		return f.DeleteCouponFunc(ctx, couponID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.coupons, couponID)
	return nil
}

func (f *fakeProvider) UpcomingInvoice(ctx context.Context, customerID, subscriptionID string) (*model.InvoicePreview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews++
	return &model.InvoicePreview{CustomerID: customerID, AmountDue: 1500, Currency: "usd", Discounted: true}, nil
}

// liveCoupons lists coupons that were created and never deleted.
func (f *fakeProvider) liveCoupons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.coupons))
	for id := range f.coupons {
		out = append(out, id)
	}
	return out
}

// --- store stubs ---

type subscriptionRepoStub struct {
	repository.SubscriptionRepository
	SyncFunc func(ctx context.Context, tenantID string, f model.SubscriptionFields, key model.IdempotencyKey) error
}

func (s *subscriptionRepoStub) Sync(ctx context.Context, tenantID string, f model.SubscriptionFields, key model.IdempotencyKey) error {
	if s.SyncFunc != nil {
		return s.SyncFunc(ctx, tenantID, f, key)
	}
	return s.SubscriptionRepository.Sync(ctx, tenantID, f, key)
}

type referralRepoStub struct {
	repository.ReferralRepository
	DecreaseBalanceFunc func(ctx context.Context, email string, txID model.IdempotencyKey, month string) (model.DecrementResult, error)
}

func (s *referralRepoStub) DecreaseBalance(ctx context.Context, email string, txID model.IdempotencyKey, month string) (model.DecrementResult, error) {
	if s.DecreaseBalanceFunc != nil {
		return s.DecreaseBalanceFunc(ctx, email, txID, month)
	}
	return s.ReferralRepository.DecreaseBalance(ctx, email, txID, month)
}

type eventRepoStub struct {
	repository.WebhookEventRepository
	CheckProcessedFunc func(ctx context.Context, eventID string) (model.ProcessedStatus, error)
	UpdateResultFunc   func(ctx context.Context, eventID string, result model.EventResult, errMsg string) error
}

func (s *eventRepoStub) CheckProcessed(ctx context.Context, eventID string) (model.ProcessedStatus, error) {
	if s.CheckProcessedFunc != nil {
		return s.CheckProcessedFunc(ctx, eventID)
	}
	return s.WebhookEventRepository.CheckProcessed(ctx, eventID)
}

func (s *eventRepoStub) UpdateResult(ctx context.Context, eventID string, result model.EventResult, errMsg string) error {
	if s.UpdateResultFunc != nil {
		return s.UpdateResultFunc(ctx, eventID, result, errMsg)
	}
	return s.WebhookEventRepository.UpdateResult(ctx, eventID, result, errMsg)
}

// --- collaborators ---

type recordingObserver struct {
	mu              sync.Mutex
	dispatches      []string
	outcomes        map[model.OutcomeKind]int
	cleanupFailures int
	runs            []string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{outcomes: make(map[model.OutcomeKind]int)}
}

func (o *recordingObserver) ObserveDispatch(eventType string, result model.EventResult, duplicate bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispatches = append(o.dispatches, fmt.Sprintf("%s:%s:%t", eventType, result, duplicate))
}

func (o *recordingObserver) ObserveDiscount(outcome model.OutcomeKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func (o *recordingObserver) CouponCleanupFailed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleanupFailures++
}

func (o *recordingObserver) ObserveBatchRun(status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, status)
}

type countingThrottle struct {
	waits int
	err   error
}

func (c *countingThrottle) Wait(ctx context.Context) error {
	c.waits++
	return c.err
}

type fakeLocker struct {
	held     bool
	unlocked int
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.held {
		return "", domain.ErrLockHeld
	}
	l.held = true
	return "tok", nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.held = false
	l.unlocked++
	return nil
}

type fakeNotifier struct {
	reports []*model.DiscountReport
}

func (n *fakeNotifier) NotifyDiscountReport(ctx context.Context, r *model.DiscountReport) error {
	n.reports = append(n.reports, r)
	return nil
}
