package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/repository"
)

var _ repository.TenantRepository = (*tenantRepo)(nil)

type tenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *tenantRepo {
	return &tenantRepo{pool: pool}
}

const tenantColumns = `id, name, email, COALESCE(referral_code, ''), created_at`

// Save inserts or updates a tenant. Used by seeding and tests; tenants are owned upstream.
func (r *tenantRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tenant) error {
	const q = `
INSERT INTO tenants (id, name, email, referral_code, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5)
ON CONFLICT (id) DO UPDATE SET
  name=$2, email=$3, referral_code=NULLIF($4, '');`
	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.Name, model.NormalizeEmail(t.Email), t.ReferralCode, t.CreatedAt)
	return mapErr("save tenant", err)
}

func (r *tenantRepo) FindByID(ctx context.Context, id string) (*model.Tenant, error) {
	return r.queryOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id=$1;`, id)
}

func (r *tenantRepo) FindByEmail(ctx context.Context, email string) (*model.Tenant, error) {
	return r.queryOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE email=$1;`, model.NormalizeEmail(email))
}

func (r *tenantRepo) FindByReferralCode(ctx context.Context, code string) (*model.Tenant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrNotFound
	}
	return r.queryOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE referral_code=$1;`, code)
}

func (r *tenantRepo) queryOne(ctx context.Context, q string, args ...interface{}) (*model.Tenant, error) {
	row, err := pickRow(ctx, r.pool, repository.NoTX, q, args...)
	if err != nil {
		return nil, mapErr("find tenant", err)
	}
	t, err := scanTenant(row)
	if err != nil {
		return nil, mapErr("find tenant", err)
	}
	return t, nil
}

func scanTenant(row pgx.Row) (*model.Tenant, error) {
	var t model.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Email, &t.ReferralCode, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
