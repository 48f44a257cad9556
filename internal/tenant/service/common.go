package service

import (
	"context"
	"errors"

	licensemodels "clinictrack/internal/license/models"
	"clinictrack/internal/sentinel"
	"clinictrack/internal/tenant/models"
	dErrors "clinictrack/pkg/domain-errors"
)

type TenantStore interface {
	Create(ctx context.Context, t *models.Tenant) error
	FindByName(ctx context.Context, name string) (*models.Tenant, error)
	FindForUpdate(ctx context.Context, name string) (*models.Tenant, error)
}

type UserStore interface {
	Create(ctx context.Context, u *models.ProfessionalUser) error
	Find(ctx context.Context, tenant, name string) (*models.ProfessionalUser, error)
	CountByTenant(ctx context.Context, tenant string) (int, error)
	ListByTenant(ctx context.Context, tenant string) ([]*models.ProfessionalUser, error)
	UpdatePassword(ctx context.Context, tenant, name, digest string) error
}

// Licenses is the part of the license service tenant provisioning relies on.
// Returned licenses already reflect lazy expiry.
type Licenses interface {
	Lookup(ctx context.Context, key string) (*licensemodels.License, error)
	Get(ctx context.Context, id int64) (*licensemodels.License, error)
	Redeem(ctx context.Context, id int64, tenant string) (*licensemodels.License, error)
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// StoreTx must be the same runner the license service uses so that tenant
// writes and license activation share one transaction.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

func wrapTenantErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

// passthrough keeps coded errors from collaborators and wraps the rest.
func passthrough(err error, action string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}
