package main

import (
	"context"
	"fmt"
	"log/slog"

	"clinictrack/internal/audit"
	licenseservice "clinictrack/internal/license/service"
	licensestore "clinictrack/internal/license/store"
	"clinictrack/internal/platform/config"
	"clinictrack/internal/platform/database"
	tenantservice "clinictrack/internal/tenant/service"
	tenantstore "clinictrack/internal/tenant/store/tenant"
	userstore "clinictrack/internal/tenant/store/user"
	therapyservice "clinictrack/internal/therapy/service"
	therapystore "clinictrack/internal/therapy/store"
	txcontext "clinictrack/pkg/platform/tx"
)

// tenantStore is what both the tenant service and the admin seeder need.
type tenantStore interface {
	tenantservice.TenantStore
	AttachLicense(ctx context.Context, name string, licenseID int64) error
}

// stores bundles one backend. Every service shares tx so that tenant writes
// and license activation commit together.
type stores struct {
	backend  string
	db       *database.DB
	tx       tenantservice.StoreTx
	licenses licenseservice.Store
	tenants  tenantStore
	users    tenantservice.UserStore
	therapy  therapyservice.Store
	audit    audit.Store
}

func (s *stores) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func openStores(ctx context.Context, cfg *config.Server, log *slog.Logger) (*stores, error) {
	if cfg.InMemoryStores {
		log.Warn("using in-memory stores; data is lost on restart")
		return &stores{
			backend:  "memory",
			tx:       txcontext.NewInMemory(),
			licenses: licensestore.NewInMemory(),
			tenants:  tenantstore.NewInMemory(),
			users:    userstore.NewInMemory(),
			therapy:  therapystore.NewInMemory(),
			audit:    audit.NewInMemoryStore(),
		}, nil
	}

	db, err := database.Open(ctx, cfg.Database())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Info("database ready", "driver", db.Dialect())

	return &stores{
		backend:  string(db.Dialect()),
		db:       db,
		tx:       db,
		licenses: licensestore.NewSQL(db),
		tenants:  tenantstore.NewSQL(db),
		users:    userstore.NewSQL(db),
		therapy:  therapystore.NewSQL(db),
		audit:    audit.NewSQLStore(db),
	}, nil
}
