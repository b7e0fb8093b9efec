package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/adapter"
	"salon-billing/internal/domain/ports/repository"
	"salon-billing/internal/domain/ports/usecase"
	"salon-billing/internal/infra/logging"
	"salon-billing/internal/infra/retry"
	"salon-billing/internal/infra/throttle"
)

// Compile-time check
var _ usecase.DiscountRunner = (*ReferralDiscountProcessor)(nil)

const batchLockKey = "lock:referral-discounts"

// ReferralConfig tunes the discount batch.
type ReferralConfig struct {
	BatchSize      int
	MaxReferrals   int   // gate 5 threshold; 0 disables the cap
	DiscountAmount int64 // minor currency units
	Currency       string
	LockTTL        time.Duration
	VerifyInvoice  bool
}

// ReferralDiscountProcessor applies one month's referral discount to each eligible tenant.
//
// Tenants are processed sequentially in fixed-size batches with a throttle wait between
// batches. Each tenant runs create coupon -> apply -> decrement balance -> delete coupon;
// once a coupon exists it is deleted on every exit path.
type ReferralDiscountProcessor struct {
	tenants   repository.TenantRepository
	subs      repository.SubscriptionRepository
	referrals repository.ReferralRepository
	provider  adapter.BillingProvider
	throttle  throttle.Throttle
	retry     *retry.Retrier
	cfg       ReferralConfig

	locker   adapter.Locker
	notifier adapter.ReportNotifier
	obs      DiscountObserver
	now      func() time.Time
	log      *zerolog.Logger
}

type ProcessorOption func(*ReferralDiscountProcessor)

// WithBatchLocker prevents concurrent runs across processes.
func WithBatchLocker(l adapter.Locker) ProcessorOption {
	return func(p *ReferralDiscountProcessor) { p.locker = l }
}

func WithReportNotifier(n adapter.ReportNotifier) ProcessorOption {
	return func(p *ReferralDiscountProcessor) { p.notifier = n }
}

func WithDiscountObserver(o DiscountObserver) ProcessorOption {
	return func(p *ReferralDiscountProcessor) {
		if o != nil {
			p.obs = o
		}
	}
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *ReferralDiscountProcessor) { p.now = now }
}

func NewReferralDiscountProcessor(
	tenants repository.TenantRepository,
	subs repository.SubscriptionRepository,
	referrals repository.ReferralRepository,
	provider adapter.BillingProvider,
	th throttle.Throttle,
	retrier *retry.Retrier,
	cfg ReferralConfig,
	logger *zerolog.Logger,
	opts ...ProcessorOption,
) *ReferralDiscountProcessor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	if th == nil {
		th = throttle.None{}
	}
	l := logger.With().Str("component", "referral_discounts").Logger()
	p := &ReferralDiscountProcessor{
		tenants:   tenants,
		subs:      subs,
		referrals: referrals,
		provider:  provider,
		throttle:  th,
		retry:     retrier,
		cfg:       cfg,
		obs:       nopObserver{},
		now:       time.Now,
		log:       &l,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run processes the given emails, or every eligible tenant when opts.Emails is empty.
// Per-tenant failures are reported, never returned; the error is reserved for
// run-level problems (lock held, target query failed).
func (p *ReferralDiscountProcessor) Run(ctx context.Context, opts model.DiscountOptions) (report *model.DiscountReport, err error) {
	defer logging.TraceDuration(p.log, "ReferralDiscountProcessor.Run")()
	runID := ulid.Make().String()
	ctx = logging.WithRunID(ctx, runID)
	log := *logging.With(ctx, p.log)
	status := "completed"
	defer func() { p.obs.ObserveBatchRun(status) }()

	if p.locker != nil {
		token, lerr := p.locker.TryLock(ctx, batchLockKey, p.cfg.LockTTL)
		if errors.Is(lerr, domain.ErrLockHeld) {
			status = "locked"
			return nil, domain.ErrBatchInProgress
		}
		if lerr != nil {
			status = "error"
			return nil, fmt.Errorf("acquire batch lock: %w", lerr)
		}
		defer func() {
			if uerr := p.locker.Unlock(context.WithoutCancel(ctx), batchLockKey, token); uerr != nil {
				log.Warn().Err(uerr).Msg("failed to release batch lock")
			}
		}()
	}

	started := time.Now()
	now := p.now()
	emails, err := p.targets(ctx, opts, now)
	if err != nil {
		status = "error"
		return nil, err
	}
	log.Info().Int("tenants", len(emails)).Bool("force_updated", opts.ForceUpdated).
		Bool("ignore_max_cap", opts.IgnoreMaxCap).Msg("referral discount run started")

	report = &model.DiscountReport{RunID: runID, ProcessedAt: now, Results: make([]model.TenantResult, 0, len(emails))}
	batches := lo.Chunk(emails, p.cfg.BatchSize)
	var abort error
	for i, batch := range batches {
		for _, email := range batch {
			var out model.DiscountOutcome
			if abort != nil {
				out = model.Failed("", abort)
			} else {
				out = p.ProcessTenant(ctx, email, opts)
			}
			report.Add(model.ResultFor(email, out))
			p.obs.ObserveDiscount(out.Kind)
		}
		if abort == nil && i < len(batches)-1 {
			if werr := p.throttle.Wait(ctx); werr != nil {
				log.Warn().Err(werr).Int("batch", i+1).Msg("throttle interrupted, failing remaining tenants")
				abort = fmt.Errorf("batch aborted: %w", werr)
			}
		}
	}
	report.Duration = time.Since(started)

	log.Info().Int("applied", report.SuccessCount).Int("skipped", report.SkippedCount).
		Int("failed", report.FailureCount).Dur("took", report.Duration).Msg("referral discount run finished")
	p.notify(ctx, report, &log)
	return report, nil
}

func (p *ReferralDiscountProcessor) targets(ctx context.Context, opts model.DiscountOptions, now time.Time) ([]string, error) {
	if len(opts.Emails) > 0 {
		emails := lo.Map(opts.Emails, func(e string, _ int) string { return model.NormalizeEmail(e) })
		return lo.Uniq(lo.Compact(emails)), nil
	}
	emails, err := p.referrals.EligibleTenantEmails(ctx, opts.ForceUpdated, !opts.IgnoreMaxCap, p.cfg.MaxReferrals, model.MonthKey(now))
	if err != nil {
		return nil, fmt.Errorf("list eligible tenants: %w", err)
	}
	return emails, nil
}

func (p *ReferralDiscountProcessor) notify(ctx context.Context, report *model.DiscountReport, log *zerolog.Logger) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyDiscountReport(context.WithoutCancel(ctx), report); err != nil {
		log.Warn().Err(err).Msg("failed to send discount report")
	}
}

// ProcessTenant runs the gates and, when they pass, the coupon transaction for one tenant.
// It never panics and never returns an error: every fault becomes a Failed outcome.
func (p *ReferralDiscountProcessor) ProcessTenant(ctx context.Context, email string, opts model.DiscountOptions) (out model.DiscountOutcome) {
	email = model.NormalizeEmail(email)
	hash := model.EmailHash(email)
	log := logging.With(ctx, p.log).With().Str("email_hash", hash).Logger()

	couponID := ""
	defer func() {
		if r := recover(); r != nil {
			if couponID != "" {
				p.deleteCoupon(ctx, couponID, &log)
			}
			out = model.Failed(couponID, fmt.Errorf("panic: %v", r))
		}
		ev := log.Info()
		if out.Kind == model.OutcomeFailed {
			ev = log.Error().Err(out.Err)
		}
		ev.Str("outcome", string(out.Kind)).Str("reason", out.Reason).Str("coupon_id", out.CouponID).Msg("tenant processed")
	}()

	if err := ctx.Err(); err != nil {
		return model.Failed("", err)
	}
	now := p.now()
	t, reason, err := p.checkEligibility(ctx, email, opts, now)
	if err != nil {
		return model.Failed("", err)
	}
	if t == nil {
		return model.SkippedNotEligible(reason)
	}

	month := model.MonthKey(now)
	key := discountKey(ctx, t.referral, month, hash, opts)
	seen, err := p.referrals.HasTransaction(ctx, key)
	if err != nil {
		return model.Failed("", fmt.Errorf("check discount marker: %w", err))
	}
	if seen {
		return model.Applied("", t.referral.Balance, "already processed")
	}

	remaining := t.referral.Balance - 1
	spec := model.CouponSpec{
		ID:          newCouponID(now, hash),
		AmountOff:   p.cfg.DiscountAmount,
		Currency:    p.cfg.Currency,
		Duration:    model.CouponDurationOnce,
		Name:        "Referral discount " + month,
		Description: fmt.Sprintf("Referral reward for %s, %d referral credits remaining", month, remaining),
		Metadata: map[string]string{
			model.TenantIDMetadataKey: t.tenant.ID,
			"email_hash":              hash,
			"applied_month":           month,
		},
	}
	created, err := p.provider.CreateCoupon(ctx, spec)
	if err != nil {
		return model.Failed("", fmt.Errorf("create coupon: %w", err))
	}
	couponID = created

	if err := p.provider.ApplyCoupon(ctx, t.sub.ProviderSubscriptionID, couponID); err != nil {
		p.deleteCoupon(ctx, couponID, &log)
		return model.Failed(couponID, fmt.Errorf("apply coupon to %s: %w", t.sub.ProviderSubscriptionID, err))
	}

	decEmail := t.referral.Email
	if decEmail == "" {
		decEmail = email
	}
	res, err := retry.Value(ctx, p.retry, "decrease_referral_balance", func(ctx context.Context) (model.DecrementResult, error) {
		return p.referrals.DecreaseBalance(ctx, decEmail, key, month)
	})
	if err != nil {
		p.deleteCoupon(ctx, couponID, &log)
		return model.Failed(couponID, fmt.Errorf("decrease referral balance: %w", err))
	}
	if !res.Success {
		p.deleteCoupon(ctx, couponID, &log)
		return model.Failed(couponID, fmt.Errorf("decrease referral balance: %s", res.Message))
	}

	p.verifyInvoice(ctx, t.sub, &log)
	p.deleteCoupon(ctx, couponID, &log)

	note := ""
	if res.AlreadyProcessed {
		note = "already processed"
	}
	return model.Applied(couponID, res.Balance, note)
}

// discountKey picks the decrement marker. A forced repeat in a month that already had a
// discount is keyed to the run, so the second coupon is debited as well.
func discountKey(ctx context.Context, rec *model.ReferralRecord, month, emailHash string, opts model.DiscountOptions) model.IdempotencyKey {
	if !opts.ForceUpdated || rec.LastAppliedMonth != month {
		return model.DiscountKey(month, emailHash)
	}
	runID := logging.RunID(ctx)
	if runID == "" {
		runID = ulid.Make().String()
	}
	return model.ForcedDiscountKey(month, emailHash, runID)
}

// deleteCoupon removes the coupon scaffolding. It outlives ctx cancellation; a failure is
// logged and counted but never changes the tenant's outcome.
func (p *ReferralDiscountProcessor) deleteCoupon(ctx context.Context, couponID string, log *zerolog.Logger) {
	err := p.retry.Do(context.WithoutCancel(ctx), "delete_coupon", func(ctx context.Context) error {
		return p.provider.DeleteCoupon(ctx, couponID)
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		p.obs.CouponCleanupFailed()
		log.Error().Err(err).Str("coupon_id", couponID).Msg("failed to delete coupon")
	}
}

func (p *ReferralDiscountProcessor) verifyInvoice(ctx context.Context, sub *model.TenantSubscription, log *zerolog.Logger) {
	if !p.cfg.VerifyInvoice {
		return
	}
	inv, err := p.provider.UpcomingInvoice(ctx, sub.ProviderCustomerID, sub.ProviderSubscriptionID)
	if err != nil {
		log.Warn().Err(err).Msg("upcoming invoice preview failed")
		return
	}
	log.Info().Int64("amount_due", inv.AmountDue).Str("currency", inv.Currency).
		Bool("discounted", inv.Discounted).Msg("upcoming invoice after discount")
}

// newCouponID builds a provider-facing id from the time, the email hash and a random suffix.
func newCouponID(now time.Time, emailHash string) string {
	id := ulid.Make().String()
	return fmt.Sprintf("ref_%d_%s_%s", now.Unix(), emailHash[:8], strings.ToLower(id[len(id)-8:]))
}
