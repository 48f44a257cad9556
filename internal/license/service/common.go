package service

import (
	"context"
	"errors"
	"time"

	"clinictrack/internal/license/models"
	"clinictrack/internal/sentinel"
	dErrors "clinictrack/pkg/domain-errors"
)

// Store is the persistence contract for licenses.
type Store interface {
	Create(ctx context.Context, l *models.License) error
	FindByID(ctx context.Context, id int64) (*models.License, error)
	FindByDigest(ctx context.Context, digest string) (*models.License, error)
	ActivateForTenant(ctx context.Context, id int64, tenant string, activatedAt, expiresAt time.Time) error
	Revoke(ctx context.Context, id int64) error
	MarkExpired(ctx context.Context, id int64) (bool, error)
}

// KeyCodec mints plaintext keys and derives their stored digest.
type KeyCodec interface {
	Generate() (string, error)
	Digest(plaintext string) string
}

// StoreTx provides a transactional boundary. Implementations may wrap a
// database transaction or an in-memory lock; nested calls join the outer one.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

func wrapLicenseErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "license not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}
