package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewSubscriptionRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *subscriptionRepo {
	return &subscriptionRepo{pool: pool, tm: tm}
}

const subscriptionColumns = `
  tenant_id, provider_subscription_id, provider_customer_id, status, price_id, plan_name,
  billing_period, current_period_end, payment_failed_at, last_transaction_id, last_event_key,
  created_at, updated_at`

func (r *subscriptionRepo) FindByCustomerID(ctx context.Context, customerID string) (*model.TenantSubscription, error) {
	const q = `
SELECT` + subscriptionColumns + `
  FROM tenant_subscriptions
 WHERE provider_customer_id=$1
 ORDER BY (status <> 'canceled') DESC, updated_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, repository.NoTX, q, customerID)
}

func (r *subscriptionRepo) FindByTenantID(ctx context.Context, tenantID string) (*model.TenantSubscription, error) {
	const q = `
SELECT` + subscriptionColumns + `
  FROM tenant_subscriptions
 WHERE tenant_id=$1
 ORDER BY (status <> 'canceled') DESC, updated_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, repository.NoTX, q, tenantID)
}

func (r *subscriptionRepo) Sync(ctx context.Context, tenantID string, f model.SubscriptionFields, key model.IdempotencyKey) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("sync subscription: %w", err)
	}
	if tenantID == "" {
		return fmt.Errorf("sync subscription: empty tenant id: %w", domain.ErrInvalidArgument)
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("sync subscription: %w", err)
	}

	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const lock = `
SELECT` + subscriptionColumns + `
  FROM tenant_subscriptions
 WHERE provider_subscription_id=$1
 FOR UPDATE;`
		cur, err := r.queryOne(ctx, tx, lock, f.ProviderSubscriptionID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if cur != nil {
			if cur.TenantID != tenantID {
				return fmt.Errorf("subscription %s belongs to another tenant: %w", f.ProviderSubscriptionID, domain.ErrAlreadyExists)
			}
			if cur.Matches(f) {
				return nil
			}
		}

		const upsert = `
INSERT INTO tenant_subscriptions (
  tenant_id, provider_subscription_id, provider_customer_id, status, price_id, plan_name,
  billing_period, current_period_end, last_event_key, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
ON CONFLICT (provider_subscription_id) DO UPDATE SET
  provider_customer_id=EXCLUDED.provider_customer_id,
  status=EXCLUDED.status,
  price_id=EXCLUDED.price_id,
  plan_name=EXCLUDED.plan_name,
  billing_period=EXCLUDED.billing_period,
  current_period_end=EXCLUDED.current_period_end,
  payment_failed_at=CASE WHEN EXCLUDED.status IN ('active','trialing') THEN NULL
                         ELSE tenant_subscriptions.payment_failed_at END,
  last_event_key=EXCLUDED.last_event_key,
  updated_at=NOW()
WHERE tenant_subscriptions.tenant_id=EXCLUDED.tenant_id;`
		tag, err := execSQL(ctx, r.pool, tx, upsert,
			tenantID, f.ProviderSubscriptionID, f.ProviderCustomerID, string(f.Status), f.PriceID, f.PlanName,
			string(f.BillingPeriod), nullTime(f.CurrentPeriodEnd), key.String())
		if err != nil {
			return mapErr("sync subscription", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("subscription %s belongs to another tenant: %w", f.ProviderSubscriptionID, domain.ErrAlreadyExists)
		}

		if f.Status == model.SubscriptionStatusCanceled {
			return nil
		}
		const cancelSiblings = `
UPDATE tenant_subscriptions
   SET status='canceled', updated_at=NOW()
 WHERE tenant_id=$1 AND provider_subscription_id<>$2 AND status<>'canceled';`
		_, err = execSQL(ctx, r.pool, tx, cancelSiblings, tenantID, f.ProviderSubscriptionID)
		return mapErr("cancel sibling subscriptions", err)
	})
}

func (r *subscriptionRepo) MarkPaymentFailed(ctx context.Context, tenantID, subscriptionID, customerID string, txID model.IdempotencyKey) error {
	if err := txID.Validate(); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const lock = `
SELECT` + subscriptionColumns + `
  FROM tenant_subscriptions
 WHERE provider_subscription_id=$1
 FOR UPDATE;`
		cur, err := r.queryOne(ctx, tx, lock, subscriptionID)
		if err != nil {
			return err
		}
		if cur.TenantID != tenantID || (customerID != "" && cur.ProviderCustomerID != customerID) {
			return fmt.Errorf("subscription %s does not match tenant/customer: %w", subscriptionID, domain.ErrInvalidArgument)
		}
		if cur.LastTransactionID == txID.String() {
			return nil
		}
		const q = `
UPDATE tenant_subscriptions
   SET status=CASE WHEN status='canceled' THEN status ELSE 'past_due' END,
       payment_failed_at=NOW(),
       last_transaction_id=$2,
       updated_at=NOW()
 WHERE provider_subscription_id=$1;`
		_, err = execSQL(ctx, r.pool, tx, q, subscriptionID, txID.String())
		return mapErr("mark payment failed", err)
	})
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.TenantSubscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr("find subscription", err)
	}
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapErr("find subscription", err)
	}
	return s, nil
}

func scanSubscription(row pgx.Row) (*model.TenantSubscription, error) {
	var (
		s         model.TenantSubscription
		status    string
		period    string
		periodEnd *time.Time
		eventKey  string
	)
	err := row.Scan(&s.TenantID, &s.ProviderSubscriptionID, &s.ProviderCustomerID, &status, &s.PriceID, &s.PlanName,
		&period, &periodEnd, &s.PaymentFailedAt, &s.LastTransactionID, &eventKey, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = model.SubscriptionStatus(status)
	s.BillingPeriod = model.BillingPeriod(period)
	s.LastEventKey = model.IdempotencyKey(eventKey)
	if periodEnd != nil {
		s.CurrentPeriodEnd = periodEnd.UTC()
	}
	return &s, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
