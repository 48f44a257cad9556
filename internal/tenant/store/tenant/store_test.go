package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clinictrack/internal/sentinel"
	"clinictrack/internal/tenant/models"
	"clinictrack/pkg/testutil"
)

type tenantStore interface {
	Create(ctx context.Context, t *models.Tenant) error
	FindByName(ctx context.Context, name string) (*models.Tenant, error)
	FindForUpdate(ctx context.Context, name string) (*models.Tenant, error)
	AttachLicense(ctx context.Context, name string, licenseID int64) error
}

type StoreSuite struct {
	suite.Suite
	newStore    func(t *testing.T) (tenantStore, func() int64)
	store       tenantStore
	seedLicense func() int64
	ctx         context.Context
	now         time.Time
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(*testing.T) (tenantStore, func() int64) {
		var next int64
		return NewInMemory(), func() int64 { next++; return next }
	}})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) (tenantStore, func() int64) {
		db := testutil.NewSQLiteDB(t)
		seed := func() int64 {
			res, err := db.Run(context.Background(),
				`INSERT INTO licenses (kind, state, created_at) VALUES ('basic', 'active', ?)`, time.Now().UTC())
			if err != nil {
				t.Fatalf("seed license: %v", err)
			}
			return res.InsertedID
		}
		return NewSQL(db), seed
	}})
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store, s.seedLicense = s.newStore(s.T())
}

func (s *StoreSuite) newTenant(name string, limit *int) *models.Tenant {
	t, err := models.NewTenant(name, "digest", nil, limit, s.now)
	s.Require().NoError(err)
	return t
}

func (s *StoreSuite) TestCreateAndFind() {
	limit := 3
	s.Require().NoError(s.store.Create(s.ctx, s.newTenant("ClinicA", &limit)))

	got, err := s.store.FindByName(s.ctx, "ClinicA")
	s.Require().NoError(err)
	s.Equal("ClinicA", got.Name)
	s.Equal("digest", got.PasswordDigest)
	s.Require().NotNil(got.LegacyUserLimit)
	s.Equal(3, *got.LegacyUserLimit)
	s.Nil(got.LicenseID)
	s.False(got.IsAdmin)
	s.True(got.CreatedAt.Equal(s.now))
}

func (s *StoreSuite) TestNullLimitRoundTrips() {
	s.Require().NoError(s.store.Create(s.ctx, s.newTenant("Unbounded", nil)))

	got, err := s.store.FindByName(s.ctx, "Unbounded")
	s.Require().NoError(err)
	s.Nil(got.LegacyUserLimit)
}

func (s *StoreSuite) TestDuplicateNameRejected() {
	s.Require().NoError(s.store.Create(s.ctx, s.newTenant("ClinicA", nil)))

	err := s.store.Create(s.ctx, s.newTenant("ClinicA", nil))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *StoreSuite) TestNamesAreCaseSensitive() {
	s.Require().NoError(s.store.Create(s.ctx, s.newTenant("ClinicA", nil)))
	s.Require().NoError(s.store.Create(s.ctx, s.newTenant("clinica", nil)))

	_, err := s.store.FindByName(s.ctx, "CLINICA")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestFindMissing() {
	_, err := s.store.FindByName(s.ctx, "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindForUpdate(s.ctx, "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestFindForUpdate() {
	s.Require().NoError(s.store.Create(s.ctx, s.newTenant("ClinicA", nil)))

	got, err := s.store.FindForUpdate(s.ctx, "ClinicA")
	s.Require().NoError(err)
	s.Equal("ClinicA", got.Name)
}

func (s *StoreSuite) TestAttachLicense() {
	s.Require().NoError(s.store.Create(s.ctx, s.newTenant("Admin", nil)))
	id := s.seedLicense()

	s.Require().NoError(s.store.AttachLicense(s.ctx, "Admin", id))

	got, err := s.store.FindByName(s.ctx, "Admin")
	s.Require().NoError(err)
	s.Require().NotNil(got.LicenseID)
	s.Equal(id, *got.LicenseID)
}

func (s *StoreSuite) TestAttachLicenseMissingTenant() {
	id := s.seedLicense()
	s.ErrorIs(s.store.AttachLicense(s.ctx, "nobody", id), sentinel.ErrNotFound)
}

func (s *StoreSuite) TestReturnedTenantIsACopy() {
	limit := 5
	s.Require().NoError(s.store.Create(s.ctx, s.newTenant("ClinicA", &limit)))

	got, err := s.store.FindByName(s.ctx, "ClinicA")
	s.Require().NoError(err)
	*got.LegacyUserLimit = 99

	again, err := s.store.FindByName(s.ctx, "ClinicA")
	s.Require().NoError(err)
	s.Equal(5, *again.LegacyUserLimit)
}
