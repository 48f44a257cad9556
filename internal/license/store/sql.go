package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clinictrack/internal/license/models"
	"clinictrack/internal/platform/database"
	"clinictrack/internal/sentinel"
)

const licenseColumns = `id, key_digest, kind, max_users, state, created_at, activated_at, expires_at, tenant_name, notes`

// SQLStore persists licenses through the database gateway.
type SQLStore struct {
	db database.Gateway
}

// NewSQL constructs a gateway-backed license store.
func NewSQL(db database.Gateway) *SQLStore {
	return &SQLStore{db: db}
}

type licenseRow struct {
	ID          int64          `db:"id"`
	KeyDigest   sql.NullString `db:"key_digest"`
	Kind        string         `db:"kind"`
	MaxUsers    sql.NullInt64  `db:"max_users"`
	State       string         `db:"state"`
	CreatedAt   time.Time      `db:"created_at"`
	ActivatedAt sql.NullTime   `db:"activated_at"`
	ExpiresAt   sql.NullTime   `db:"expires_at"`
	TenantName  sql.NullString `db:"tenant_name"`
	Notes       string         `db:"notes"`
}

func (r licenseRow) toModel() *models.License {
	l := &models.License{
		ID:        r.ID,
		Kind:      models.Kind(r.Kind),
		State:     models.State(r.State),
		CreatedAt: r.CreatedAt.UTC(),
		Notes:     r.Notes,
	}
	if r.KeyDigest.Valid {
		l.KeyDigest = &r.KeyDigest.String
	}
	if r.MaxUsers.Valid {
		n := int(r.MaxUsers.Int64)
		l.MaxUsers = &n
	}
	if r.ActivatedAt.Valid {
		t := r.ActivatedAt.Time.UTC()
		l.ActivatedAt = &t
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time.UTC()
		l.ExpiresAt = &t
	}
	if r.TenantName.Valid {
		l.TenantName = &r.TenantName.String
	}
	return l
}

// Create inserts l and assigns its ID. A digest collision returns sentinel.ErrAlreadyUsed.
func (s *SQLStore) Create(ctx context.Context, l *models.License) error {
	if l == nil {
		return fmt.Errorf("license is required")
	}
	var maxUsers *int64
	if l.MaxUsers != nil {
		n := int64(*l.MaxUsers)
		maxUsers = &n
	}
	query := `
		INSERT INTO licenses (key_digest, kind, max_users, state, created_at, activated_at, expires_at, tenant_name, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	var id int64
	err := s.db.Get(ctx, &id, query,
		l.KeyDigest,
		string(l.Kind),
		maxUsers,
		string(l.State),
		l.CreatedAt.UTC(),
		utcPtr(l.ActivatedAt),
		utcPtr(l.ExpiresAt),
		l.TenantName,
		l.Notes,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("license key digest must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create license: %w", err)
	}
	l.ID = id
	return nil
}

func (s *SQLStore) FindByID(ctx context.Context, id int64) (*models.License, error) {
	return s.findOne(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE id = ?`, id)
}

// FindByDigest retrieves the license whose key hashes to digest.
func (s *SQLStore) FindByDigest(ctx context.Context, digest string) (*models.License, error) {
	return s.findOne(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE key_digest = ?`, digest)
}

func (s *SQLStore) findOne(ctx context.Context, query string, args ...any) (*models.License, error) {
	var row licenseRow
	if err := s.db.Get(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find license: %w", err)
	}
	return row.toModel(), nil
}

// ActivateForTenant moves a pending license to active in a single
// conditional update. If the license is no longer pending nothing is written
// and sentinel.ErrInvalidState is returned.
func (s *SQLStore) ActivateForTenant(ctx context.Context, id int64, tenant string, activatedAt, expiresAt time.Time) error {
	query := `
		UPDATE licenses
		SET state = ?, activated_at = ?, expires_at = ?, tenant_name = ?
		WHERE id = ? AND state = ?
	`
	res, err := s.db.Run(ctx, query,
		string(models.StateActive), activatedAt.UTC(), expiresAt.UTC(), tenant,
		id, string(models.StatePending),
	)
	if err != nil {
		return fmt.Errorf("activate license: %w", err)
	}
	if res.Changes == 0 {
		return fmt.Errorf("license %d is not pending: %w", id, sentinel.ErrInvalidState)
	}
	return nil
}

// Revoke moves a pending license to revoked.
func (s *SQLStore) Revoke(ctx context.Context, id int64) error {
	res, err := s.db.Run(ctx,
		`UPDATE licenses SET state = ? WHERE id = ? AND state = ?`,
		string(models.StateRevoked), id, string(models.StatePending),
	)
	if err != nil {
		return fmt.Errorf("revoke license: %w", err)
	}
	if res.Changes == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("license %d is not pending: %w", id, sentinel.ErrInvalidState)
}

// MarkExpired persists an expiry that was observed lazily and reports
// whether this call made the transition. Terminal licenses are left untouched.
func (s *SQLStore) MarkExpired(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.Run(ctx,
		`UPDATE licenses SET state = ? WHERE id = ? AND state IN (?, ?)`,
		string(models.StateExpired), id, string(models.StatePending), string(models.StateActive),
	)
	if err != nil {
		return false, fmt.Errorf("mark license expired: %w", err)
	}
	return res.Changes == 1, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
