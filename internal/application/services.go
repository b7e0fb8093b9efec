// Package application wires config into the store, provider and use cases shared by
// the service and the batch CLI.
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"salon-billing/internal/config"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/adapter"
	"salon-billing/internal/domain/ports/repository"
	"salon-billing/internal/infra/adapters/billing"
	"salon-billing/internal/infra/adapters/telegram"
	"salon-billing/internal/infra/db/memory"
	pg "salon-billing/internal/infra/db/postgres"
	"salon-billing/internal/infra/metrics"
	red "salon-billing/internal/infra/redis"
	"salon-billing/internal/infra/retry"
	"salon-billing/internal/infra/sched"
	"salon-billing/internal/infra/throttle"
	"salon-billing/internal/usecase"
)

// Services holds the wired use cases plus the handles needed to serve and shut down.
type Services struct {
	Parser        *billing.EventParser
	Ledger        *usecase.EventLedger
	Dispatcher    *usecase.WebhookDispatcher
	Discounts     *usecase.ReferralDiscountProcessor
	Subscriptions *usecase.SubscriptionAdmin

	// RateLimiter is nil without redis.
	RateLimiter *red.RateLimiter
	// PoolStats is nil on the in-memory store.
	PoolStats sched.PoolStats

	pings   []func(ctx context.Context) error
	closers []func()
}

type stores struct {
	tenants   repository.TenantRepository
	subs      repository.SubscriptionRepository
	referrals repository.ReferralRepository
	events    repository.WebhookEventRepository
}

// Build connects to the configured backends. In dev mode without a database URL the
// in-memory store is used (optionally seeded), and without a Stripe key the in-memory
// provider, mirrored from the same seed.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (_ *Services, err error) {
	s := &Services{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	var seed *memory.Seed
	if cfg.Runtime.Dev && cfg.Dev.SeedFile != "" {
		if seed, err = memory.ReadSeed(cfg.Dev.SeedFile); err != nil {
			return nil, err
		}
	}

	var rc *red.Client
	if cfg.Redis.Enabled() {
		if rc, err = red.NewClient(ctx, cfg.Redis); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		s.closers = append(s.closers, func() { _ = rc.Close() })
		s.pings = append(s.pings, rc.Ping)
		s.RateLimiter = red.NewRateLimiter(rc)
	}

	st, err := s.buildStores(ctx, cfg, seed, rc, logger)
	if err != nil {
		return nil, err
	}

	provider, err := buildProvider(cfg, seed, logger)
	if err != nil {
		return nil, err
	}

	amount, err := cfg.Referral.AmountMinor()
	if err != nil {
		return nil, err
	}

	retrier := retry.New(retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Multiplier:      cfg.Retry.Multiplier,
	}, logger)

	var notifier adapter.ReportNotifier
	if cfg.Telegram.Enabled() {
		if notifier, err = telegram.NewReportNotifier(cfg.Telegram, logger); err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
	} else {
		notifier = telegram.NewNoopNotifier(logger)
	}

	opts := []usecase.ProcessorOption{
		usecase.WithReportNotifier(notifier),
		usecase.WithDiscountObserver(metrics.Recorder{}),
	}
	if rc != nil {
		opts = append(opts, usecase.WithBatchLocker(red.NewLocker(rc)))
	}

	s.Parser = billing.NewEventParser(cfg.Stripe.WebhookSecret)
	s.Ledger = usecase.NewEventLedger(st.events, logger)
	s.Dispatcher = usecase.NewWebhookDispatcher(s.Ledger, st.tenants, st.subs, st.referrals, provider, retrier, logger,
		usecase.WithDispatchObserver(metrics.Recorder{}))
	s.Discounts = usecase.NewReferralDiscountProcessor(st.tenants, st.subs, st.referrals, provider,
		throttle.FromConfig(cfg.Referral.Throttle, cfg.Referral.BatchDelay, cfg.Referral.ThrottleBurst),
		retrier,
		usecase.ReferralConfig{
			BatchSize:      cfg.Referral.BatchSize,
			MaxReferrals:   cfg.Referral.MaxReferrals,
			DiscountAmount: amount,
			Currency:       cfg.Referral.Currency,
			LockTTL:        cfg.Referral.LockTTL,
			VerifyInvoice:  cfg.Referral.VerifyInvoice,
		},
		logger, opts...)
	s.Subscriptions = usecase.NewSubscriptionAdmin(st.subs, provider, retrier, logger)
	return s, nil
}

func (s *Services) buildStores(ctx context.Context, cfg *config.Config, seed *memory.Seed, rc *red.Client, logger *zerolog.Logger) (*stores, error) {
	if cfg.Database.URL == "" {
		if !cfg.Runtime.Dev {
			return nil, errors.New("database url is required outside dev mode")
		}
		mem := memory.New()
		if seed != nil {
			if err := mem.ApplySeed(seed); err != nil {
				return nil, err
			}
		}
		logger.Warn().Msg("using in-memory store; state is lost on exit")
		return &stores{mem.Tenants(), mem.Subscriptions(), mem.Referrals(), mem.Events()}, nil
	}

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	s.closers = append(s.closers, pool.Close)
	s.pings = append(s.pings, pool.Ping)
	s.PoolStats = func() (int32, int32, int32) {
		st := pool.Stat()
		return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
	}

	tm := pg.NewTxManager(pool)
	var events repository.WebhookEventRepository = pg.NewWebhookEventRepo(pool)
	if rc != nil {
		events = pg.NewWebhookEventRepoCacheDecorator(events, rc, cfg.Redis.TTL, logger)
	}
	return &stores{
		tenants:   pg.NewTenantRepo(pool),
		subs:      pg.NewSubscriptionRepo(pool, tm),
		referrals: pg.NewReferralRepo(pool, tm),
		events:    events,
	}, nil
}

func buildProvider(cfg *config.Config, seed *memory.Seed, logger *zerolog.Logger) (adapter.BillingProvider, error) {
	if cfg.Stripe.SecretKey != "" {
		p, err := billing.NewStripeProvider(cfg.Stripe, logger)
		if err != nil {
			return nil, fmt.Errorf("stripe: %w", err)
		}
		return p, nil
	}
	if !cfg.Runtime.Dev {
		return nil, errors.New("stripe secret key is required outside dev mode")
	}
	logger.Warn().Msg("using in-memory billing provider")
	p := billing.NewNoopProvider()
	if seed != nil {
		mirrorSeed(p, seed)
	}
	return p, nil
}

// mirrorSeed registers the seeded customers and subscriptions with the dev provider.
func mirrorSeed(p *billing.NoopProvider, seed *memory.Seed) {
	emails := make(map[string]string, len(seed.Tenants))
	for _, t := range seed.Tenants {
		emails[t.ID] = t.Email
	}
	for _, sub := range seed.Subscriptions {
		interval := "month"
		if model.BillingPeriod(sub.BillingPeriod) == model.BillingPeriodYearly {
			interval = "year"
		}
		p.AddCustomer(model.ProviderCustomer{ID: sub.CustomerID, Email: emails[sub.TenantID]})
		p.AddSubscription(model.SubscriptionSnapshot{
			ID:               sub.SubscriptionID,
			CustomerID:       sub.CustomerID,
			Status:           sub.Status,
			PriceID:          sub.PriceID,
			PlanName:         sub.PlanName,
			Interval:         interval,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
			Metadata:         map[string]string{model.TenantIDMetadataKey: sub.TenantID},
		})
	}
}

// Ready pings every backend.
func (s *Services) Ready(ctx context.Context) error {
	for _, ping := range s.pings {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases backends in reverse order of acquisition.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
