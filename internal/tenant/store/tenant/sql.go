package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clinictrack/internal/platform/database"
	"clinictrack/internal/sentinel"
	"clinictrack/internal/tenant/models"
)

const tenantColumns = `name, password_digest, legacy_user_limit, license_id, is_admin, created_at`

// Locker is implemented by gateways that can lock rows read inside a transaction.
type Locker interface {
	LockClause() string
}

// SQLStore persists tenants through the database gateway.
type SQLStore struct {
	db database.Gateway
}

func NewSQL(db database.Gateway) *SQLStore {
	return &SQLStore{db: db}
}

type tenantRow struct {
	Name            string        `db:"name"`
	PasswordDigest  string        `db:"password_digest"`
	LegacyUserLimit sql.NullInt64 `db:"legacy_user_limit"`
	LicenseID       sql.NullInt64 `db:"license_id"`
	IsAdmin         bool          `db:"is_admin"`
	CreatedAt       time.Time     `db:"created_at"`
}

func (r tenantRow) toModel() *models.Tenant {
	t := &models.Tenant{
		Name:           r.Name,
		PasswordDigest: r.PasswordDigest,
		IsAdmin:        r.IsAdmin,
		CreatedAt:      r.CreatedAt.UTC(),
	}
	if r.LegacyUserLimit.Valid {
		n := int(r.LegacyUserLimit.Int64)
		t.LegacyUserLimit = &n
	}
	if r.LicenseID.Valid {
		id := r.LicenseID.Int64
		t.LicenseID = &id
	}
	return t
}

// Create inserts t. The primary key on name is the authority for uniqueness:
// a duplicate returns sentinel.ErrAlreadyUsed.
func (s *SQLStore) Create(ctx context.Context, t *models.Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is required")
	}
	var limit *int64
	if t.LegacyUserLimit != nil {
		n := int64(*t.LegacyUserLimit)
		limit = &n
	}
	_, err := s.db.Run(ctx, `
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.Name, t.PasswordDigest, limit, t.LicenseID, t.IsAdmin, t.CreatedAt.UTC())
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("tenant name must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (s *SQLStore) FindByName(ctx context.Context, name string) (*models.Tenant, error) {
	return s.findOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE name = ?`, name)
}

// FindForUpdate reads the tenant and, on backends that support it, locks the
// row until the surrounding transaction ends. SQLite transactions already
// hold the database write lock from BEGIN.
func (s *SQLStore) FindForUpdate(ctx context.Context, name string) (*models.Tenant, error) {
	lock := ""
	if l, ok := s.db.(Locker); ok {
		lock = l.LockClause()
	}
	return s.findOne(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE name = ?`+lock, name)
}

func (s *SQLStore) findOne(ctx context.Context, query string, args ...any) (*models.Tenant, error) {
	var row tenantRow
	if err := s.db.Get(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return row.toModel(), nil
}

// AttachLicense links an existing tenant to a license.
func (s *SQLStore) AttachLicense(ctx context.Context, name string, licenseID int64) error {
	res, err := s.db.Run(ctx, `UPDATE tenants SET license_id = ? WHERE name = ?`, licenseID, name)
	if err != nil {
		return fmt.Errorf("attach license: %w", err)
	}
	if res.Changes == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
