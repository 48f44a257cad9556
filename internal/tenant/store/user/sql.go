// Package user persists professional users, keyed by (tenant, name).
package user

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

const userColumns = `tenant_name, name, real_name, password_digest, created_at`

type SQLStore struct {
	db database.Gateway
}

func NewSQL(db database.Gateway) *SQLStore {
	return &SQLStore{db: db}
}

type userRow struct {
	Tenant         string    `db:"tenant_name"`
	Name           string    `db:"name"`
	RealName       string    `db:"real_name"`
	PasswordDigest string    `db:"password_digest"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r userRow) toModel() *models.ProfessionalUser {
	return &models.ProfessionalUser{
		Tenant:         r.Tenant,
		Name:           r.Name,
		RealName:       r.RealName,
		PasswordDigest: r.PasswordDigest,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

// Create inserts u. A duplicate (tenant, name) returns sentinel.ErrAlreadyUsed;
// a missing tenant returns sentinel.ErrNotFound.
func (s *SQLStore) Create(ctx context.Context, u *models.ProfessionalUser) error {
	if u == nil {
		return fmt.Errorf("user is required")
	}
	_, err := s.db.Run(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?)
	`, u.Tenant, u.Name, u.RealName, u.PasswordDigest, u.CreatedAt.UTC())
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err):
		return fmt.Errorf("user already exists in tenant: %w", sentinel.ErrAlreadyUsed)
	case database.IsForeignKeyViolation(err):
		return fmt.Errorf("tenant %q: %w", u.Tenant, sentinel.ErrNotFound)
	default:
		return fmt.Errorf("create user: %w", err)
	}
}

func (s *SQLStore) Find(ctx context.Context, tenant, name string) (*models.ProfessionalUser, error) {
	var row userRow
	err := s.db.Get(ctx, &row, `SELECT `+userColumns+` FROM users WHERE tenant_name = ? AND name = ?`, tenant, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) CountByTenant(ctx context.Context, tenant string) (int, error) {
	var count int
	if err := s.db.Get(ctx, &count, `SELECT COUNT(*) FROM users WHERE tenant_name = ?`, tenant); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// ListByTenant returns the tenant's users ordered by name.
func (s *SQLStore) ListByTenant(ctx context.Context, tenant string) ([]*models.ProfessionalUser, error) {
	var rows []userRow
	if err := s.db.All(ctx, &rows, `SELECT `+userColumns+` FROM users WHERE tenant_name = ? ORDER BY name`, tenant); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]*models.ProfessionalUser, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toModel())
	}
	return users, nil
}

func (s *SQLStore) UpdatePassword(ctx context.Context, tenant, name, digest string) error {
	res, err := s.db.Run(ctx, `UPDATE users SET password_digest = ? WHERE tenant_name = ? AND name = ?`, digest, tenant, name)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	if res.Changes == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
