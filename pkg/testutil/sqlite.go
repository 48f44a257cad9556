package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clinictrack/internal/platform/database"
)

// NewSQLiteDB opens a migrated SQLite database in a per-test temp directory.
// File databases are used instead of :memory: so that every pooled
// connection sees the same data.
func NewSQLiteDB(t testing.TB) *database.DB {
	t.Helper()
	cfg := database.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "clinictrack_test.db")
	cfg.BusyTimeout = 10 * time.Second

	db, err := database.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// SeedTenant inserts a bare tenant row so that foreign keys referencing it hold.
func SeedTenant(t testing.TB, db database.Gateway, name string) {
	t.Helper()
	_, err := db.Run(context.Background(),
		`INSERT INTO tenants (name, password_digest, created_at) VALUES (?, ?, ?)`,
		name, "seeded", time.Now().UTC())
	if err != nil {
		t.Fatalf("seed tenant %q: %v", name, err)
	}
}

// SeedUser inserts a professional under an already seeded tenant.
func SeedUser(t testing.TB, db database.Gateway, tenant, name string) {
	t.Helper()
	_, err := db.Run(context.Background(),
		`INSERT INTO users (tenant_name, name, password_digest, created_at) VALUES (?, ?, ?, ?)`,
		tenant, name, "seeded", time.Now().UTC())
	if err != nil {
		t.Fatalf("seed user %s/%s: %v", tenant, name, err)
	}
}
