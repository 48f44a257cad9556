package service

//go:generate mockgen -source=common.go -destination=mocks/mocks.go -package=mocks Store,KeyCodec,StoreTx

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"clinictrack/internal/audit"
	"clinictrack/internal/license/keycodec"
	licensemetrics "clinictrack/internal/license/metrics"
	"clinictrack/internal/license/models"
	"clinictrack/internal/platform/tracer"
	"clinictrack/internal/sentinel"
	dErrors "clinictrack/pkg/domain-errors"
	txcontext "clinictrack/pkg/platform/tx"
	"clinictrack/pkg/requestcontext"
)

const (
	maxGenerateAttempts = 3
	expiryWriteTimeout  = 10 * time.Second
)

// Service owns the license lifecycle: generate, validate, redeem, revoke and
// the lazy expiry that happens on every read.
type Service struct {
	store   Store
	codec   KeyCodec
	tx      StoreTx
	logger  *slog.Logger
	metrics *licensemetrics.Metrics
	tracer  tracer.Tracer
	audit   audit.Emitter
	now     func() time.Time

	writeBacks sync.WaitGroup
}

func New(store Store, codec KeyCodec, opts ...Option) *Service {
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
	if cfg.audit == nil {
		cfg.audit = audit.Nop{}
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	return &Service{
		store:   store,
		codec:   codec,
		tx:      cfg.tx,
		logger:  cfg.logger,
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
		audit:   cfg.audit,
		now:     func() time.Time { return cfg.clock().UTC() },
	}
}

// Generate creates a pending license and returns its plaintext key. The key
// is not stored anywhere and cannot be recovered later.
func (s *Service) Generate(ctx context.Context, cmd GenerateCommand) (result *GenerateResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanLicenseGenerate, tracer.String(tracer.AttrLicenseKind, string(cmd.Kind)))
	defer func() { span.End(err) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		key, err := s.codec.Generate()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate license key")
		}
		license, err := models.NewLicense(cmd.Kind, s.codec.Digest(key), cmd.MaxUsers, cmd.Notes, s.now())
		if err != nil {
			return nil, err
		}

		err = s.store.Create(ctx, license)
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.logger.WarnContext(ctx, "license key digest collision, retrying",
				"attempt", attempt,
				"request_id", requestcontext.RequestID(ctx),
			)
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store license")
		}

		s.logger.InfoContext(ctx, "license generated",
			"license_id", license.ID,
			"kind", license.Kind,
			"key", keycodec.Mask(key),
			"request_id", requestcontext.RequestID(ctx),
		)
		span.SetAttributes(tracer.Int64(tracer.AttrLicenseID, license.ID))
		if s.metrics != nil {
			s.metrics.IncrementGenerated(string(license.Kind))
		}
		s.audit.Emit(ctx, audit.Event{
			Action:  audit.ActionLicenseGenerated,
			Subject: licenseSubject(license.ID),
			Reason:  string(license.Kind),
		})
		return &GenerateResult{Key: key, License: license}, nil
	}
	return nil, dErrors.New(dErrors.CodeInternal, "could not allocate a unique license key")
}

// Lookup resolves a plaintext key. The returned license already reflects
// any expiry that has passed.
func (s *Service) Lookup(ctx context.Context, key string) (*models.License, error) {
	key = keycodec.Normalize(key)
	if key == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "license key is required")
	}
	license, err := s.store.FindByDigest(ctx, s.codec.Digest(key))
	if err != nil {
		return nil, wrapLicenseErr(err, "failed to look up license")
	}
	s.observeExpiry(ctx, license)
	return license, nil
}

// Get returns a license by id for administrative reads.
func (s *Service) Get(ctx context.Context, id int64) (*models.License, error) {
	license, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapLicenseErr(err, "failed to load license")
	}
	s.observeExpiry(ctx, license)
	return license, nil
}

// Validate reports whether key could be redeemed right now. Unknown,
// expired, used and revoked keys are outcomes, not errors.
func (s *Service) Validate(ctx context.Context, key string) (result *ValidationResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanLicenseValidate)
	defer func() { span.End(err) }()

	license, err := s.Lookup(ctx, key)
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		result = &ValidationResult{Outcome: models.OutcomeNotFound}
	case err != nil:
		return nil, err
	default:
		result = &ValidationResult{Outcome: license.Outcome(s.now()), License: license}
	}

	span.SetAttributes(tracer.String(tracer.AttrOutcome, string(result.Outcome)))
	if s.metrics != nil {
		s.metrics.IncrementValidation(string(result.Outcome))
	}
	return result, nil
}

// Revoke withdraws a license that has not been redeemed yet.
func (s *Service) Revoke(ctx context.Context, id int64) (revoked *models.License, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanLicenseRevoke, tracer.Int64(tracer.AttrLicenseID, id))
	defer func() { span.End(err) }()

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		license, err := s.store.FindByID(txCtx, id)
		if err != nil {
			return wrapLicenseErr(err, "failed to load license")
		}
		if err := license.Revoke(s.now()); err != nil {
			return dErrors.New(dErrors.CodeConflict, "only pending licenses can be revoked")
		}
		if err := s.store.Revoke(txCtx, id); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeConflict, "only pending licenses can be revoked")
			}
			return wrapLicenseErr(err, "failed to revoke license")
		}
		revoked = license
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "license revoked",
		"license_id", id,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementRevoked()
	}
	s.audit.Emit(ctx, audit.Event{Action: audit.ActionLicenseRevoked, Subject: licenseSubject(id)})
	return revoked, nil
}

// Redeem binds a pending license to tenant and starts its one year term. It
// must run inside the caller's transaction so the tenant insert and the
// activation commit or roll back together. Exactly one concurrent caller can
// succeed for a given license.
func (s *Service) Redeem(ctx context.Context, id int64, tenant string) (*models.License, error) {
	license, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.countRedemption("invalid")
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidLicense, "invalid license key")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load license")
	}

	now := s.now()
	s.observeExpiry(ctx, license)
	if err := license.Activate(tenant, now); err != nil {
		s.countRedemption("not_redeemable")
		return nil, dErrors.New(dErrors.CodeLicenseNotRedeemable, "license is not redeemable")
	}

	if err := s.store.ActivateForTenant(ctx, id, tenant, now, *license.ExpiresAt); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			s.countRedemption("not_redeemable")
			return nil, dErrors.New(dErrors.CodeLicenseNotRedeemable, "license is not redeemable")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate license")
	}
	s.countRedemption("redeemed")
	return license, nil
}

// Wait blocks until every pending expiry write-back has finished.
func (s *Service) Wait() {
	s.writeBacks.Wait()
}

// observeExpiry flips the returned copy to expired and persists the change in
// the background. Failures are logged and retried on the next read. Only the
// write-back that moves the row records the expiry.
func (s *Service) observeExpiry(ctx context.Context, license *models.License) {
	if !license.NeedsExpiryWriteBack(s.now()) {
		return
	}
	license.State = models.StateExpired

	detached := txcontext.Detach(ctx)
	s.writeBacks.Add(1)
	var tenant string
	if license.TenantName != nil {
		tenant = *license.TenantName
	}
	go func(id int64) {
		defer s.writeBacks.Done()
		ctx, cancel := context.WithTimeout(detached, expiryWriteTimeout)
		defer cancel()
		changed, err := s.store.MarkExpired(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to persist license expiry",
				"license_id", id,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			return
		}
		if !changed {
			return
		}
		if s.metrics != nil {
			s.metrics.IncrementExpired()
		}
		s.audit.Emit(ctx, audit.Event{Action: audit.ActionLicenseExpired, Tenant: tenant, Subject: licenseSubject(id)})
	}(license.ID)
}

func licenseSubject(id int64) string {
	return "license:" + strconv.FormatInt(id, 10)
}

func (s *Service) countRedemption(result string) {
	if s.metrics != nil {
		s.metrics.IncrementRedemption(result)
	}
}
