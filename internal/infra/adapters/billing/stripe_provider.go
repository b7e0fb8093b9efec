package billing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"golang.org/x/time/rate"

	"salon-billing/internal/config"
	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/adapter"
	"salon-billing/internal/infra/metrics"
)

var _ adapter.BillingProvider = (*StripeProvider)(nil)

// StripeProvider implements adapter.BillingProvider on the Stripe API.
// Every call waits on a shared rate limiter and runs under its own timeout.
// The SDK's network retries are disabled; callers retry through retry.Retrier.
type StripeProvider struct {
	sc      *client.API
	limiter *rate.Limiter
	timeout time.Duration
	log     *zerolog.Logger
}

type StripeOption func(*stripeOptions)

type stripeOptions struct {
	backends *stripe.Backends
}

// WithBackends points the client at custom backends (e.g. an httptest server).
func WithBackends(b *stripe.Backends) StripeOption {
	return func(o *stripeOptions) { o.backends = b }
}

// NewBackends builds backends for url with SDK retries disabled.
func NewBackends(url string, httpClient *http.Client) *stripe.Backends {
	cfg := &stripe.BackendConfig{
		URL:               stripe.String(url),
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	return &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
}

func NewStripeProvider(cfg config.StripeConfig, logger *zerolog.Logger, opts ...StripeOption) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is empty: %w", domain.ErrInvalidArgument)
	}
	o := stripeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backends == nil {
		o.backends = NewBackends(stripe.APIURL, &http.Client{Timeout: 80 * time.Second})
	}
	rps, burst := cfg.RequestsPerSecond, cfg.Burst
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "stripe").Logger()
	return &StripeProvider{
		sc:      client.New(cfg.SecretKey, o.backends),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		timeout: timeout,
		log:     &l,
	}, nil
}

func (p *StripeProvider) Name() string { return "stripe" }

// call runs fn under the provider timeout and rate limit, then classifies its error.
func (p *StripeProvider) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		metrics.IncProviderCall(op, "transient")
		return fmt.Errorf("stripe %s: rate limit wait: %v: %w", op, err, domain.ErrTransient)
	}
	err := classify(op, fn(ctx))
	switch {
	case err == nil:
		metrics.IncProviderCall(op, "ok")
	case errors.Is(err, domain.ErrTransient):
		metrics.IncProviderCall(op, "transient")
		p.log.Warn().Err(err).Str("op", op).Msg("transient provider failure")
	default:
		metrics.IncProviderCall(op, "error")
	}
	return err
}

func (p *StripeProvider) GetCustomer(ctx context.Context, customerID string) (*model.ProviderCustomer, error) {
	var out *model.ProviderCustomer
	err := p.call(ctx, "get_customer", func(ctx context.Context) error {
		params := &stripe.CustomerParams{}
		params.Context = ctx
		c, err := p.sc.Customers.Get(customerID, params)
		if err != nil {
			return err
		}
		if c.Deleted {
			return fmt.Errorf("customer %s deleted: %w", customerID, domain.ErrNotFound)
		}
		out = &model.ProviderCustomer{ID: c.ID, Email: c.Email, Metadata: c.Metadata}
		return nil
	})
	return out, err
}

func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error) {
	var out *model.SubscriptionSnapshot
	err := p.call(ctx, "get_subscription", func(ctx context.Context) error {
		params := &stripe.SubscriptionParams{}
		params.Context = ctx
		params.AddExpand("items.data.price.product")
		s, err := p.sc.Subscriptions.Get(subscriptionID, params)
		if err != nil {
			return err
		}
		out = snapshotFromStripe(s)
		return nil
	})
	return out, err
}

func (p *StripeProvider) ApplyCoupon(ctx context.Context, subscriptionID, couponID string) error {
	return p.call(ctx, "apply_coupon", func(ctx context.Context) error {
		params := &stripe.SubscriptionParams{
			Discounts: []*stripe.SubscriptionDiscountParams{{Coupon: stripe.String(couponID)}},
		}
		params.Context = ctx
		_, err := p.sc.Subscriptions.Update(subscriptionID, params)
		return err
	})
}

func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error) {
	var out *model.SubscriptionSnapshot
	err := p.call(ctx, "cancel_subscription", func(ctx context.Context) error {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		s, err := p.sc.Subscriptions.Cancel(subscriptionID, params)
		if err != nil {
			return err
		}
		out = snapshotFromStripe(s)
		return nil
	})
	return out, err
}

func (p *StripeProvider) CreateCoupon(ctx context.Context, spec model.CouponSpec) (string, error) {
	var id string
	err := p.call(ctx, "create_coupon", func(ctx context.Context) error {
		params := &stripe.CouponParams{
			AmountOff: stripe.Int64(spec.AmountOff),
			Currency:  stripe.String(spec.Currency),
			Duration:  stripe.String(string(spec.Duration)),
		}
		if spec.ID != "" {
			params.ID = stripe.String(spec.ID)
		}
		if spec.Name != "" {
			params.Name = stripe.String(spec.Name)
		}
		for k, v := range spec.Metadata {
			params.AddMetadata(k, v)
		}
		if spec.Description != "" {
			params.AddMetadata("description", spec.Description)
		}
		params.Context = ctx
		c, err := p.sc.Coupons.New(params)
		if err != nil {
			return err
		}
		id = c.ID
		return nil
	})
	return id, err
}

func (p *StripeProvider) DeleteCoupon(ctx context.Context, couponID string) error {
	return p.call(ctx, "delete_coupon", func(ctx context.Context) error {
		params := &stripe.CouponParams{}
		params.Context = ctx
		_, err := p.sc.Coupons.Del(couponID, params)
		return err
	})
}

func (p *StripeProvider) UpcomingInvoice(ctx context.Context, customerID, subscriptionID string) (*model.InvoicePreview, error) {
	var out *model.InvoicePreview
	err := p.call(ctx, "upcoming_invoice", func(ctx context.Context) error {
		params := &stripe.InvoiceCreatePreviewParams{Customer: stripe.String(customerID)}
		if subscriptionID != "" {
			params.Subscription = stripe.String(subscriptionID)
		}
		params.Context = ctx
		inv, err := p.sc.Invoices.CreatePreview(params)
		if err != nil {
			return err
		}
		discounted := false
		for _, d := range inv.TotalDiscountAmounts {
			if d != nil && d.Amount > 0 {
				discounted = true
				break
			}
		}
		out = &model.InvoicePreview{
			CustomerID: customerID,
			AmountDue:  inv.AmountDue,
			Currency:   string(inv.Currency),
			Discounted: discounted,
		}
		return nil
	})
	return out, err
}

func snapshotFromStripe(s *stripe.Subscription) *model.SubscriptionSnapshot {
	snap := &model.SubscriptionSnapshot{
		ID:       s.ID,
		Status:   string(s.Status),
		Metadata: s.Metadata,
	}
	if s.Customer != nil {
		snap.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0] != nil {
		item := s.Items.Data[0]
		if item.CurrentPeriodEnd > 0 {
			snap.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
		if pr := item.Price; pr != nil {
			snap.PriceID = pr.ID
			snap.PlanName = pr.Nickname
			if pr.Product != nil && pr.Product.Name != "" {
				snap.PlanName = pr.Product.Name
			}
			if pr.Recurring != nil {
				snap.Interval = string(pr.Recurring.Interval)
			}
		}
	}
	return snap
}

// classify maps SDK and transport errors onto domain errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrTransient) {
		return fmt.Errorf("stripe %s: %w", op, err)
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		switch {
		case se.HTTPStatusCode == http.StatusNotFound || se.Code == stripe.ErrorCodeResourceMissing:
			return fmt.Errorf("stripe %s: %s: %w", op, se.Msg, domain.ErrNotFound)
		case string(se.Code) == "resource_already_exists":
			return fmt.Errorf("stripe %s: %s: %w", op, se.Msg, domain.ErrAlreadyExists)
		case se.HTTPStatusCode == http.StatusTooManyRequests,
			se.HTTPStatusCode == http.StatusConflict,
			se.HTTPStatusCode >= 500,
			se.Type == stripe.ErrorTypeAPI:
			return fmt.Errorf("stripe %s: %s: %w", op, se.Msg, domain.ErrTransient)
		default:
			return fmt.Errorf("stripe %s: %s: %w", op, se.Msg, domain.ErrInvalidArgument)
		}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("stripe %s: %v: %w", op, err, domain.ErrTransient)
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}
