// Package seeder bootstraps the operator's admin tenant at startup.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	licensemodels "clinictrack/internal/license/models"
	"clinictrack/internal/sentinel"
	tenantmodels "clinictrack/internal/tenant/models"
)

// Admin describes the admin tenant. Seeding is skipped unless both User and
// Password are set.
type Admin struct {
	User        string
	Password    string
	MaxUsers    *int
	LicenseKind licensemodels.Kind
}

func (a Admin) Enabled() bool {
	return a.User != "" && a.Password != ""
}

type TenantStore interface {
	Create(ctx context.Context, t *tenantmodels.Tenant) error
	FindByName(ctx context.Context, name string) (*tenantmodels.Tenant, error)
	AttachLicense(ctx context.Context, name string, licenseID int64) error
}

type LicenseStore interface {
	Create(ctx context.Context, l *licensemodels.License) error
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Seeder struct {
	tenants  TenantStore
	licenses LicenseStore
	hasher   PasswordHasher
	tx       StoreTx
	logger   *slog.Logger
	now      func() time.Time
}

func New(tenants TenantStore, licenses LicenseStore, hasher PasswordHasher, tx StoreTx, logger *slog.Logger) *Seeder {
	return &Seeder{
		tenants:  tenants,
		licenses: licenses,
		hasher:   hasher,
		tx:       tx,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SeedAdmin creates the admin tenant and its key-less license if they are
// missing. Running it again is a no-op.
func (s *Seeder) SeedAdmin(ctx context.Context, admin Admin) error {
	if !admin.Enabled() {
		return nil
	}
	if admin.LicenseKind == "" {
		admin.LicenseKind = licensemodels.KindBasic
	}

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		tenant, err := s.tenants.FindByName(ctx, admin.User)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			tenant, err = s.createTenant(ctx, admin)
			if err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("load admin tenant: %w", err)
		}

		if tenant.LicenseID != nil {
			return nil
		}

		license, err := licensemodels.NewBootstrapLicense(admin.LicenseKind, admin.MaxUsers, tenant.Name, s.now())
		if err != nil {
			return err
		}
		if err := s.licenses.Create(ctx, license); err != nil {
			return fmt.Errorf("create admin license: %w", err)
		}
		if err := s.tenants.AttachLicense(ctx, tenant.Name, license.ID); err != nil {
			return fmt.Errorf("attach admin license: %w", err)
		}
		s.logger.InfoContext(ctx, "admin license created",
			"tenant", tenant.Name,
			"license_id", license.ID,
			"kind", license.Kind,
		)
		return nil
	})
}

func (s *Seeder) createTenant(ctx context.Context, admin Admin) (*tenantmodels.Tenant, error) {
	digest, err := s.hasher.Hash(admin.Password)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	tenant, err := tenantmodels.NewTenant(admin.User, digest, nil, admin.MaxUsers, s.now())
	if err != nil {
		return nil, err
	}
	tenant.IsAdmin = true
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("create admin tenant: %w", err)
	}
	s.logger.InfoContext(ctx, "admin tenant created", "tenant", tenant.Name)
	return tenant, nil
}
