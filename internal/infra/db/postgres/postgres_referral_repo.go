package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/repository"
)

var _ repository.ReferralRepository = (*referralRepo)(nil)

// referralRepo keeps balances in referrals and one row per applied mutation in
// referral_transactions. The marker insert and the counter update share a transaction.
type referralRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewReferralRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *referralRepo {
	return &referralRepo{pool: pool, tm: tm}
}

const referralColumns = `
  id, tenant_id, email, provider_customer_id, balance, total_referral_count,
  last_applied_month, created_at, updated_at`

// Save inserts or updates a referral record. Used by seeding and tests.
func (r *referralRepo) Save(ctx context.Context, tx repository.Tx, rec *model.ReferralRecord) error {
	const q = `
INSERT INTO referrals (id, tenant_id, email, provider_customer_id, balance, total_referral_count,
                       last_applied_month, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
ON CONFLICT (id) DO UPDATE SET
  email=$3, provider_customer_id=$4, balance=$5, total_referral_count=$6, last_applied_month=$7, updated_at=NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, rec.ID, rec.TenantID, model.NormalizeEmail(rec.Email), rec.ProviderCustomerID,
		rec.Balance, rec.TotalReferralCount, rec.LastAppliedMonth)
	return mapErr("save referral", err)
}

func (r *referralRepo) FindByCustomerID(ctx context.Context, customerID string) (*model.ReferralRecord, error) {
	return r.queryOne(ctx, repository.NoTX, `SELECT`+referralColumns+` FROM referrals WHERE provider_customer_id=$1 LIMIT 1;`, customerID)
}

func (r *referralRepo) FindByTenantID(ctx context.Context, tenantID string) (*model.ReferralRecord, error) {
	return r.queryOne(ctx, repository.NoTX, `SELECT`+referralColumns+` FROM referrals WHERE tenant_id=$1;`, tenantID)
}

func (r *referralRepo) IncrementCount(ctx context.Context, referralID string, key model.IdempotencyKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, fmt.Errorf("increment referral count: %w", err)
	}
	applied := false
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		fresh, err := r.insertMarker(ctx, tx, key, referralID, model.ReferralTxIncrement, "")
		if err != nil || !fresh {
			return err
		}
		const q = `
UPDATE referrals
   SET balance=balance+1, total_referral_count=total_referral_count+1, updated_at=NOW()
 WHERE id=$1;`
		tag, err := execSQL(ctx, r.pool, tx, q, referralID)
		if err != nil {
			return mapErr("increment referral count", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("referral %s: %w", referralID, domain.ErrNotFound)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *referralRepo) DecreaseBalance(ctx context.Context, email string, txID model.IdempotencyKey, appliedMonth string) (model.DecrementResult, error) {
	if err := txID.Validate(); err != nil {
		return model.DecrementResult{}, fmt.Errorf("decrease referral balance: %w", err)
	}
	email = model.NormalizeEmail(email)

	var res model.DecrementResult
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		rec, err := r.queryOne(ctx, tx, `SELECT`+referralColumns+` FROM referrals WHERE email=$1 FOR UPDATE;`, email)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		seen, err := r.markerExists(ctx, tx, txID)
		if err != nil {
			return err
		}
		switch {
		case seen:
			res = model.DecrementResult{Success: true, AlreadyProcessed: true, Message: "already processed"}
			if rec != nil {
				res.Balance = rec.Balance
			}
			return nil
		case rec == nil:
			res = model.DecrementResult{Message: "referral record not found"}
			return nil
		case rec.Balance <= 0:
			res = model.DecrementResult{Message: "insufficient referral balance", Balance: rec.Balance}
			return nil
		}

		fresh, err := r.insertMarker(ctx, tx, txID, rec.ID, model.ReferralTxDecrement, appliedMonth)
		if err != nil {
			return err
		}
		if !fresh {
			res = model.DecrementResult{Success: true, AlreadyProcessed: true, Message: "already processed", Balance: rec.Balance}
			return nil
		}
		const q = `
UPDATE referrals
   SET balance=balance-1, last_applied_month=$2, updated_at=NOW()
 WHERE id=$1
RETURNING balance;`
		row, err := pickRow(ctx, r.pool, tx, q, rec.ID, appliedMonth)
		if err != nil {
			return mapErr("decrease referral balance", err)
		}
		var balance int
		if err := row.Scan(&balance); err != nil {
			return mapErr("decrease referral balance", err)
		}
		res = model.DecrementResult{Success: true, Balance: balance}
		return nil
	})
	if err != nil {
		return model.DecrementResult{}, err
	}
	return res, nil
}

func (r *referralRepo) HasTransaction(ctx context.Context, key model.IdempotencyKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, fmt.Errorf("check referral marker: %w", err)
	}
	return r.markerExists(ctx, nil, key)
}

func (r *referralRepo) EligibleTenantEmails(ctx context.Context, includeUpdated, applyMaxCap bool, maxReferrals int, month string) ([]string, error) {
	const q = `
SELECT email
  FROM referrals
 WHERE balance > 0
   AND email <> ''
   AND ($1::boolean OR to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM') <> $2)
   AND (NOT $3::boolean OR $4::int <= 0 OR total_referral_count < $4::int)
 ORDER BY email;`
	rows, err := queryRows(ctx, r.pool, repository.NoTX, q, includeUpdated, month, applyMaxCap, maxReferrals)
	if err != nil {
		return nil, mapErr("list eligible referrals", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, email)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *referralRepo) insertMarker(ctx context.Context, tx repository.Tx, key model.IdempotencyKey, referralID string, kind model.ReferralTxKind, month string) (bool, error) {
	const q = `
INSERT INTO referral_transactions (tx_id, referral_id, kind, applied_month, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NOW())
ON CONFLICT (tx_id) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q, key.String(), referralID, string(kind), month)
	if err != nil {
		return false, mapErr("insert referral marker", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *referralRepo) markerExists(ctx context.Context, tx repository.Tx, key model.IdempotencyKey) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS (SELECT 1 FROM referral_transactions WHERE tx_id=$1);`, key.String())
	if err != nil {
		return false, mapErr("check referral marker", err)
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, mapErr("check referral marker", err)
	}
	return ok, nil
}

func (r *referralRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.ReferralRecord, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr("find referral", err)
	}
	var rec model.ReferralRecord
	err = row.Scan(&rec.ID, &rec.TenantID, &rec.Email, &rec.ProviderCustomerID, &rec.Balance, &rec.TotalReferralCount,
		&rec.LastAppliedMonth, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, mapErr("find referral", err)
	}
	return &rec, nil
}
