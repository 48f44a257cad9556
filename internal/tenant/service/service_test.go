package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	licensemodels "clinictrack/internal/license/models"
	"clinictrack/internal/sentinel"
	tenantmetrics "clinictrack/internal/tenant/metrics"
	"clinictrack/internal/tenant/models"
	"clinictrack/internal/tenant/service/mocks"
	dErrors "clinictrack/pkg/domain-errors"
	txcontext "clinictrack/pkg/platform/tx"
)

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	tenants  *mocks.MockTenantStore
	users    *mocks.MockUserStore
	licenses *mocks.MockLicenses
	hasher   *mocks.MockPasswordHasher
	metrics  *tenantmetrics.Metrics
	svc      *Service
	now      time.Time
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.tenants = mocks.NewMockTenantStore(s.ctrl)
	s.users = mocks.NewMockUserStore(s.ctrl)
	s.licenses = mocks.NewMockLicenses(s.ctrl)
	s.hasher = mocks.NewMockPasswordHasher(s.ctrl)
	s.metrics = tenantmetrics.NewWith(prometheus.NewRegistry())
	s.now = time.Date(2025, 2, 10, 8, 0, 0, 0, time.UTC)
	s.ctx = context.Background()
	s.svc = New(s.tenants, s.users, s.licenses,
		WithHasher(s.hasher),
		WithMetrics(s.metrics),
		WithTx(txcontext.NewInMemory()),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) license(state licensemodels.State, maxUsers *int) *licensemodels.License {
	return &licensemodels.License{
		ID:       7,
		Kind:     licensemodels.KindBasic,
		MaxUsers: maxUsers,
		State:    state,
	}
}

func (s *ServiceSuite) registerCmd() RegisterCommand {
	return RegisterCommand{
		Name:            "ClinicA",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		LicenseKey:      "ABCD-EFGH-JKLM-NPQR-STUV",
	}
}

func intPtr(n int) *int { return &n }

func (s *ServiceSuite) TestRegisterTenantValidation() {
	cases := []struct {
		name   string
		mutate func(c *RegisterCommand)
	}{
		{"short name", func(c *RegisterCommand) { c.Name = "ab" }},
		{"short password", func(c *RegisterCommand) { c.Password, c.ConfirmPassword = "12345", "12345" }},
		{"confirmation mismatch", func(c *RegisterCommand) { c.ConfirmPassword = "secret2" }},
		{"short key", func(c *RegisterCommand) { c.LicenseKey = "ABCD" }},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			cmd := s.registerCmd()
			tc.mutate(&cmd)
			_, err := s.svc.RegisterTenant(s.ctx, cmd)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}

func (s *ServiceSuite) TestRegisterTenant() {
	s.Run("creates tenant and redeems license", func() {
		pending := s.license(licensemodels.StatePending, intPtr(3))
		gomock.InOrder(
			s.licenses.EXPECT().Lookup(gomock.Any(), "ABCD-EFGH-JKLM-NPQR-STUV").Return(pending, nil),
			s.hasher.EXPECT().Hash("secret1").Return("digest", nil),
			s.licenses.EXPECT().Get(gomock.Any(), int64(7)).Return(pending, nil),
			s.tenants.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, t *models.Tenant) error {
					s.Equal("ClinicA", t.Name)
					s.Equal("digest", t.PasswordDigest)
					s.Require().NotNil(t.LicenseID)
					s.Equal(int64(7), *t.LicenseID)
					s.Require().NotNil(t.LegacyUserLimit)
					s.Equal(3, *t.LegacyUserLimit)
					return nil
				}),
			s.licenses.EXPECT().Redeem(gomock.Any(), int64(7), "ClinicA").
				Return(s.license(licensemodels.StateActive, intPtr(3)), nil),
		)

		result, err := s.svc.RegisterTenant(s.ctx, s.registerCmd())
		s.Require().NoError(err)
		s.Equal("ClinicA", result.Tenant.Name)
		s.Equal(licensemodels.StateActive, result.License.State)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.TenantsRegistered))
	})

	s.Run("unknown key is an invalid license", func() {
		s.licenses.EXPECT().Lookup(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "license not found"))

		_, err := s.svc.RegisterTenant(s.ctx, s.registerCmd())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidLicense))
	})

	for _, state := range []licensemodels.State{
		licensemodels.StateActive, licensemodels.StateRevoked, licensemodels.StateExpired,
	} {
		s.Run("license "+string(state)+" is not redeemable", func() {
			s.licenses.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(s.license(state, nil), nil)

			_, err := s.svc.RegisterTenant(s.ctx, s.registerCmd())
			s.True(dErrors.HasCode(err, dErrors.CodeLicenseNotRedeemable))
		})
	}

	s.Run("license consumed before the transaction starts writes nothing", func() {
		s.licenses.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(s.license(licensemodels.StatePending, nil), nil)
		s.hasher.EXPECT().Hash(gomock.Any()).Return("digest", nil)
		s.licenses.EXPECT().Get(gomock.Any(), int64(7)).Return(s.license(licensemodels.StateActive, nil), nil)

		_, err := s.svc.RegisterTenant(s.ctx, s.registerCmd())
		s.True(dErrors.HasCode(err, dErrors.CodeLicenseNotRedeemable))
	})

	s.Run("taken name leaves the license pending", func() {
		pending := s.license(licensemodels.StatePending, nil)
		s.licenses.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(pending, nil)
		s.hasher.EXPECT().Hash(gomock.Any()).Return("digest", nil)
		s.licenses.EXPECT().Get(gomock.Any(), int64(7)).Return(pending, nil)
		s.tenants.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(errors.Join(errors.New("tenant name must be unique"), sentinel.ErrAlreadyUsed))

		_, err := s.svc.RegisterTenant(s.ctx, s.registerCmd())
		s.True(dErrors.HasCode(err, dErrors.CodeNameTaken))
	})

	s.Run("lost redemption race is not redeemable", func() {
		pending := s.license(licensemodels.StatePending, nil)
		s.licenses.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(pending, nil)
		s.hasher.EXPECT().Hash(gomock.Any()).Return("digest", nil)
		s.licenses.EXPECT().Get(gomock.Any(), int64(7)).Return(pending, nil)
		s.tenants.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.licenses.EXPECT().Redeem(gomock.Any(), int64(7), "ClinicA").
			Return(nil, dErrors.New(dErrors.CodeLicenseNotRedeemable, "license is not redeemable"))

		_, err := s.svc.RegisterTenant(s.ctx, s.registerCmd())
		s.True(dErrors.HasCode(err, dErrors.CodeLicenseNotRedeemable))
	})

	s.Run("store failure is internal", func() {
		s.licenses.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk"))

		_, err := s.svc.RegisterTenant(s.ctx, s.registerCmd())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestEffectiveUserLimit() {
	licenseID := int64(7)

	s.Run("license limit wins over the tenant column", func() {
		s.tenants.EXPECT().FindByName(gomock.Any(), "ClinicA").
			Return(&models.Tenant{Name: "ClinicA", LicenseID: &licenseID, LegacyUserLimit: intPtr(1)}, nil)
		s.licenses.EXPECT().Get(gomock.Any(), licenseID).Return(s.license(licensemodels.StateActive, intPtr(3)), nil)

		limit, err := s.svc.EffectiveUserLimit(s.ctx, "ClinicA")
		s.Require().NoError(err)
		n, ok := limit.Max()
		s.True(ok)
		s.Equal(3, n)
	})

	s.Run("unlimited license", func() {
		s.tenants.EXPECT().FindByName(gomock.Any(), "ClinicA").
			Return(&models.Tenant{Name: "ClinicA", LicenseID: &licenseID}, nil)
		s.licenses.EXPECT().Get(gomock.Any(), licenseID).Return(s.license(licensemodels.StateActive, nil), nil)

		limit, err := s.svc.EffectiveUserLimit(s.ctx, "ClinicA")
		s.Require().NoError(err)
		s.True(limit.IsUnlimited())
	})

	s.Run("legacy limit without license", func() {
		s.tenants.EXPECT().FindByName(gomock.Any(), "Old").
			Return(&models.Tenant{Name: "Old", LegacyUserLimit: intPtr(2)}, nil)

		limit, err := s.svc.EffectiveUserLimit(s.ctx, "Old")
		s.Require().NoError(err)
		s.Equal("2", limit.String())
	})

	s.Run("missing license falls back to legacy limit", func() {
		s.tenants.EXPECT().FindByName(gomock.Any(), "ClinicA").
			Return(&models.Tenant{Name: "ClinicA", LicenseID: &licenseID, LegacyUserLimit: intPtr(4)}, nil)
		s.licenses.EXPECT().Get(gomock.Any(), licenseID).Return(nil, dErrors.New(dErrors.CodeNotFound, "license not found"))

		limit, err := s.svc.EffectiveUserLimit(s.ctx, "ClinicA")
		s.Require().NoError(err)
		s.Equal("4", limit.String())
	})

	s.Run("unknown tenant", func() {
		s.tenants.EXPECT().FindByName(gomock.Any(), "nobody").Return(nil, sentinel.ErrNotFound)

		_, err := s.svc.EffectiveUserLimit(s.ctx, "nobody")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestCreateUser() {
	cmd := CreateUserCommand{Tenant: "Old", Name: "drsmith", RealName: "Dr Smith", Password: "secret1"}
	tenant := &models.Tenant{Name: "Old", LegacyUserLimit: intPtr(2)}

	s.Run("admitted under the limit", func() {
		s.hasher.EXPECT().Hash("secret1").Return("digest", nil)
		s.tenants.EXPECT().FindForUpdate(gomock.Any(), "Old").Return(tenant, nil)
		s.users.EXPECT().CountByTenant(gomock.Any(), "Old").Return(1, nil)
		s.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		user, err := s.svc.CreateUser(s.ctx, cmd)
		s.Require().NoError(err)
		s.Equal("drsmith", user.Name)
		s.Equal("Dr Smith", user.RealName)
		s.Equal(s.now, user.CreatedAt)
	})

	s.Run("rejected at the limit", func() {
		s.hasher.EXPECT().Hash("secret1").Return("digest", nil)
		s.tenants.EXPECT().FindForUpdate(gomock.Any(), "Old").Return(tenant, nil)
		s.users.EXPECT().CountByTenant(gomock.Any(), "Old").Return(2, nil)

		_, err := s.svc.CreateUser(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeUserLimitReached))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.UserLimitRejections))
	})

	s.Run("duplicate user", func() {
		s.hasher.EXPECT().Hash("secret1").Return("digest", nil)
		s.tenants.EXPECT().FindForUpdate(gomock.Any(), "Old").Return(tenant, nil)
		s.users.EXPECT().CountByTenant(gomock.Any(), "Old").Return(0, nil)
		s.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrAlreadyUsed)

		_, err := s.svc.CreateUser(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown tenant", func() {
		s.hasher.EXPECT().Hash("secret1").Return("digest", nil)
		s.tenants.EXPECT().FindForUpdate(gomock.Any(), "Old").Return(nil, sentinel.ErrNotFound)

		_, err := s.svc.CreateUser(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid input never reaches the store", func() {
		_, err := s.svc.CreateUser(s.ctx, CreateUserCommand{Tenant: "Old", Name: "x", Password: "secret1"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.svc.CreateUser(s.ctx, CreateUserCommand{Tenant: "Old", Name: "drsmith", Password: "123"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestAuthenticateTenant() {
	licenseID := int64(7)
	tenant := &models.Tenant{Name: "ClinicA", PasswordDigest: "digest", LicenseID: &licenseID}

	s.Run("returns license kind", func() {
		s.tenants.EXPECT().FindByName(gomock.Any(), "ClinicA").Return(tenant, nil)
		s.hasher.EXPECT().Verify("secret1", "digest").Return(true)
		s.licenses.EXPECT().Get(gomock.Any(), licenseID).Return(s.license(licensemodels.StateActive, nil), nil)

		login, err := s.svc.AuthenticateTenant(s.ctx, "ClinicA", "secret1")
		s.Require().NoError(err)
		s.Equal(licensemodels.KindBasic, login.LicenseKind)
		s.False(login.IsAdmin)
	})

	s.Run("wrong password", func() {
		s.tenants.EXPECT().FindByName(gomock.Any(), "ClinicA").Return(tenant, nil)
		s.hasher.EXPECT().Verify("wrong", "digest").Return(false)

		_, err := s.svc.AuthenticateTenant(s.ctx, "ClinicA", "wrong")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown tenant looks like a wrong password", func() {
		s.tenants.EXPECT().FindByName(gomock.Any(), "nobody").Return(nil, sentinel.ErrNotFound)

		_, err := s.svc.AuthenticateTenant(s.ctx, "nobody", "secret1")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestChangeUserPassword() {
	tenant := &models.Tenant{Name: "Old", PasswordDigest: "tenant-digest"}
	cmd := ChangePasswordCommand{Tenant: "Old", TenantPassword: "tenantpw", User: "drsmith", NewPassword: "newpass"}

	s.Run("updates after tenant re-authenticates", func() {
		s.tenants.EXPECT().FindByName(gomock.Any(), "Old").Return(tenant, nil)
		s.hasher.EXPECT().Verify("tenantpw", "tenant-digest").Return(true)
		s.hasher.EXPECT().Hash("newpass").Return("new-digest", nil)
		s.users.EXPECT().UpdatePassword(gomock.Any(), "Old", "drsmith", "new-digest").Return(nil)

		s.NoError(s.svc.ChangeUserPassword(s.ctx, cmd))
	})

	s.Run("wrong tenant password", func() {
		s.tenants.EXPECT().FindByName(gomock.Any(), "Old").Return(tenant, nil)
		s.hasher.EXPECT().Verify("tenantpw", "tenant-digest").Return(false)

		err := s.svc.ChangeUserPassword(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown user", func() {
		s.tenants.EXPECT().FindByName(gomock.Any(), "Old").Return(tenant, nil)
		s.hasher.EXPECT().Verify("tenantpw", "tenant-digest").Return(true)
		s.hasher.EXPECT().Hash("newpass").Return("new-digest", nil)
		s.users.EXPECT().UpdatePassword(gomock.Any(), "Old", "drsmith", "new-digest").Return(sentinel.ErrNotFound)

		err := s.svc.ChangeUserPassword(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("short new password", func() {
		bad := cmd
		bad.NewPassword = "123"
		err := s.svc.ChangeUserPassword(s.ctx, bad)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
