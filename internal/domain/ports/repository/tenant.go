package repository

import (
	"context"

	"salon-billing/internal/domain/model"
)

type TenantRepository interface {
	FindByID(ctx context.Context, id string) (*model.Tenant, error)
	FindByEmail(ctx context.Context, email string) (*model.Tenant, error)
	FindByReferralCode(ctx context.Context, code string) (*model.Tenant, error)
}
