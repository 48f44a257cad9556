package service

//go:generate mockgen -source=common.go -destination=mocks/mocks.go -package=mocks TenantStore,UserStore,Licenses,PasswordHasher,StoreTx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"clinictrack/internal/audit"
	"clinictrack/internal/license/keycodec"
	licensemodels "clinictrack/internal/license/models"
	"clinictrack/internal/platform/tracer"
	"clinictrack/internal/sentinel"
	tenantmetrics "clinictrack/internal/tenant/metrics"
	"clinictrack/internal/tenant/models"
	dErrors "clinictrack/pkg/domain-errors"
	txcontext "clinictrack/pkg/platform/tx"
	"clinictrack/pkg/requestcontext"
	"clinictrack/pkg/secrets"
)

// Service provisions tenants from licenses and manages their professional users.
type Service struct {
	tenants  TenantStore
	users    UserStore
	licenses Licenses
	tx       StoreTx
	hasher   PasswordHasher
	logger   *slog.Logger
	metrics  *tenantmetrics.Metrics
	tracer   tracer.Tracer
	audit    audit.Emitter
	now      func() time.Time
}

func New(tenants TenantStore, users UserStore, licenses Licenses, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.tracer == nil {
		cfg.tracer = tracer.NewNoop()
	}
	if cfg.tx == nil {
		cfg.tx = txcontext.NewInMemory()
	}
	if cfg.hasher == nil {
		cfg.hasher = secrets.NewHasher(secrets.DefaultCost)
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	if cfg.audit == nil {
		cfg.audit = audit.Nop{}
	}
	return &Service{
		tenants:  tenants,
		users:    users,
		licenses: licenses,
		tx:       cfg.tx,
		hasher:   cfg.hasher,
		logger:   cfg.logger,
		metrics:  cfg.metrics,
		tracer:   cfg.tracer,
		audit:    cfg.audit,
		now:      func() time.Time { return cfg.clock().UTC() },
	}
}

// RegisterTenant creates a tenant and redeems the license in one transaction.
// Either both the tenant and the activation are stored or neither is.
func (s *Service) RegisterTenant(ctx context.Context, cmd RegisterCommand) (result *RegisterResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanTenantRegister, tracer.String(tracer.AttrTenant, cmd.Name))
	defer func() { span.End(err) }()

	if err := cmd.Validate(); err != nil {
		s.rejectRegistration("validation")
		return nil, err
	}

	license, err := s.licenses.Lookup(ctx, cmd.LicenseKey)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.rejectRegistration("invalid_license")
			return nil, dErrors.New(dErrors.CodeInvalidLicense, "invalid license key")
		}
		return nil, passthrough(err, "failed to look up license")
	}
	if license.State != licensemodels.StatePending {
		s.rejectRegistration("not_redeemable")
		return nil, notRedeemable(license.State)
	}

	digest, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, passthrough(err, "failed to hash password")
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// Re-read under the transaction; the in-memory store cannot undo a
		// tenant insert, so nothing is written unless the license is still pending.
		current, err := s.licenses.Get(txCtx, license.ID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return dErrors.New(dErrors.CodeInvalidLicense, "invalid license key")
			}
			return passthrough(err, "failed to load license")
		}
		if current.State != licensemodels.StatePending {
			return notRedeemable(current.State)
		}

		tenant, err := models.NewTenant(cmd.Name, digest, &current.ID, current.MaxUsers, s.now())
		if err != nil {
			return err
		}
		if err := s.tenants.Create(txCtx, tenant); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeNameTaken, "tenant name is already taken")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
		}

		redeemed, err := s.licenses.Redeem(txCtx, current.ID, tenant.Name)
		if err != nil {
			return passthrough(err, "failed to redeem license")
		}
		result = &RegisterResult{Tenant: tenant, License: redeemed}
		return nil
	})
	if err != nil {
		s.rejectRegistration(rejectionReason(err))
		s.logger.InfoContext(ctx, "tenant registration rejected",
			"tenant", cmd.Name,
			"key", keycodec.Mask(keycodec.Normalize(cmd.LicenseKey)),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, "tenant registered",
		"tenant", result.Tenant.Name,
		"license_id", result.License.ID,
		"kind", result.License.Kind,
		"request_id", requestcontext.RequestID(ctx),
	)
	span.SetAttributes(tracer.Int64(tracer.AttrLicenseID, result.License.ID))
	if s.metrics != nil {
		s.metrics.IncrementTenantRegistered()
	}
	s.audit.Emit(ctx, audit.Event{
		Action:  audit.ActionTenantRegistered,
		Tenant:  result.Tenant.Name,
		Subject: "license:" + strconv.FormatInt(result.License.ID, 10),
		Reason:  string(result.License.Kind),
	})
	return result, nil
}

// EffectiveUserLimit resolves the tenant's cap on professional users. It is
// computed on every call and never cached.
func (s *Service) EffectiveUserLimit(ctx context.Context, tenant string) (models.UserLimit, error) {
	t, err := s.tenants.FindByName(ctx, tenant)
	if err != nil {
		return models.UserLimit{}, wrapTenantErr(err, "failed to load tenant")
	}
	return s.limitFor(ctx, t)
}

// limitFor prefers the license's maxUsers; the tenant column only applies
// when no license is attached or the license row is gone.
func (s *Service) limitFor(ctx context.Context, t *models.Tenant) (models.UserLimit, error) {
	if t.LicenseID == nil {
		return models.LimitFrom(t.LegacyUserLimit), nil
	}
	license, err := s.licenses.Get(ctx, *t.LicenseID)
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		s.logger.WarnContext(ctx, "tenant references a missing license",
			"tenant", t.Name,
			"license_id", *t.LicenseID,
		)
		return models.LimitFrom(t.LegacyUserLimit), nil
	case err != nil:
		return models.UserLimit{}, passthrough(err, "failed to load license")
	}
	return models.LimitFrom(license.MaxUsers), nil
}

// UserCapacity reports the limit and current number of users.
func (s *Service) UserCapacity(ctx context.Context, tenant string) (*Capacity, error) {
	limit, err := s.EffectiveUserLimit(ctx, tenant)
	if err != nil {
		return nil, err
	}
	count, err := s.users.CountByTenant(ctx, tenant)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count users")
	}
	return &Capacity{Limit: limit, Current: count}, nil
}

// CanAddUser reports whether one more professional would fit under the limit.
func (s *Service) CanAddUser(ctx context.Context, tenant string) (bool, error) {
	capacity, err := s.UserCapacity(ctx, tenant)
	if err != nil {
		return false, err
	}
	return capacity.CanAdd(), nil
}

// CountUsers returns how many professionals the tenant has.
func (s *Service) CountUsers(ctx context.Context, tenant string) (int, error) {
	if _, err := s.tenants.FindByName(ctx, tenant); err != nil {
		return 0, wrapTenantErr(err, "failed to load tenant")
	}
	count, err := s.users.CountByTenant(ctx, tenant)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count users")
	}
	return count, nil
}

// CreateUser adds a professional if the tenant's limit allows it. The count
// and insert run in one transaction with the tenant row locked, so concurrent
// creations cannot overshoot the limit.
func (s *Service) CreateUser(ctx context.Context, cmd CreateUserCommand) (created *models.ProfessionalUser, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanUserCreate, tracer.String(tracer.AttrTenant, cmd.Tenant))
	defer func() { span.End(err) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, passthrough(err, "failed to hash password")
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		t, err := s.tenants.FindForUpdate(txCtx, cmd.Tenant)
		if err != nil {
			return wrapTenantErr(err, "failed to load tenant")
		}
		limit, err := s.limitFor(txCtx, t)
		if err != nil {
			return err
		}
		count, err := s.users.CountByTenant(txCtx, t.Name)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count users")
		}
		if !limit.Admits(count) {
			if s.metrics != nil {
				s.metrics.IncrementUserLimitRejected()
			}
			return dErrors.New(dErrors.CodeUserLimitReached,
				fmt.Sprintf("user limit reached: %d of %s", count, limit))
		}

		user, err := models.NewProfessionalUser(t.Name, cmd.Name, cmd.RealName, digest, s.now())
		if err != nil {
			return err
		}
		if err := s.users.Create(txCtx, user); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				return dErrors.New(dErrors.CodeConflict, "user already exists")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "tenant not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "professional user created",
		"tenant", created.Tenant,
		"user", created.Name,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementUserCreated()
	}
	s.audit.Emit(ctx, audit.Event{Action: audit.ActionUserCreated, Tenant: created.Tenant, Subject: created.Name})
	return created, nil
}

// ListUsers returns the tenant's professionals ordered by name.
func (s *Service) ListUsers(ctx context.Context, tenant string) ([]*models.ProfessionalUser, error) {
	if _, err := s.tenants.FindByName(ctx, tenant); err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant")
	}
	users, err := s.users.ListByTenant(ctx, tenant)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, nil
}

// AuthenticateTenant checks the tenant's password. Unknown tenants and wrong
// passwords are indistinguishable to the caller.
func (s *Service) AuthenticateTenant(ctx context.Context, name, password string) (*TenantLogin, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveLogin("tenant", time.Now())
	}
	t, err := s.tenants.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}
	if !s.hasher.Verify(password, t.PasswordDigest) {
		return nil, invalidCredentials()
	}

	login := &TenantLogin{Tenant: t, IsAdmin: t.IsAdmin}
	if t.LicenseID != nil {
		license, err := s.licenses.Get(ctx, *t.LicenseID)
		switch {
		case err == nil:
			login.LicenseKind = license.Kind
		case !dErrors.HasCode(err, dErrors.CodeNotFound):
			return nil, passthrough(err, "failed to load license")
		}
	}
	return login, nil
}

// AuthenticateUser checks a professional's password within a tenant.
func (s *Service) AuthenticateUser(ctx context.Context, tenant, name, password string) (*models.ProfessionalUser, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveLogin("professional", time.Now())
	}
	user, err := s.users.Find(ctx, tenant, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !s.hasher.Verify(password, user.PasswordDigest) {
		return nil, invalidCredentials()
	}
	return user, nil
}

// ChangeUserPassword sets a new password for a professional after the tenant
// account re-authenticates.
func (s *Service) ChangeUserPassword(ctx context.Context, cmd ChangePasswordCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if _, err := s.AuthenticateTenant(ctx, cmd.Tenant, cmd.TenantPassword); err != nil {
		return err
	}
	digest, err := s.hasher.Hash(cmd.NewPassword)
	if err != nil {
		return passthrough(err, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, cmd.Tenant, cmd.User, digest); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update password")
	}
	s.logger.InfoContext(ctx, "professional password changed",
		"tenant", cmd.Tenant,
		"user", cmd.User,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.audit.Emit(ctx, audit.Event{Action: audit.ActionPasswordChanged, Tenant: cmd.Tenant, Subject: cmd.User})
	return nil
}

func (s *Service) rejectRegistration(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementRegistrationRejected(reason)
	}
}

func rejectionReason(err error) string {
	if code := dErrors.CodeOf(err); code != "" {
		return string(code)
	}
	return "unknown"
}

func notRedeemable(state licensemodels.State) error {
	return dErrors.New(dErrors.CodeLicenseNotRedeemable, fmt.Sprintf("license is not redeemable (%s)", state))
}

func invalidCredentials() error {
	return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
}
