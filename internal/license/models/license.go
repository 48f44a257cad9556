package models

import (
	"time"

	dErrors "clinictrack/pkg/domain-errors"
)

// termYears is how long a license stays valid after activation.
const termYears = 1

// License is a single-use entitlement that unlocks one tenant registration.
// The plaintext key is never part of the model; only its digest is.
type License struct {
	ID          int64
	KeyDigest   *string // nil for licenses bootstrapped without a key
	Kind        Kind
	MaxUsers    *int // nil means unlimited
	State       State
	CreatedAt   time.Time
	ActivatedAt *time.Time
	ExpiresAt   *time.Time
	TenantName  *string
	Notes       string
}

// NewLicense builds a pending license. A nil maxUsers takes the kind's preset.
func NewLicense(kind Kind, digest string, maxUsers *int, notes string, now time.Time) (*License, error) {
	if maxUsers != nil && *maxUsers < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "max users must be at least 1")
	}
	if maxUsers == nil {
		maxUsers = kind.PresetMaxUsers()
	}
	l := &License{
		Kind:      kind,
		MaxUsers:  maxUsers,
		State:     StatePending,
		CreatedAt: now,
		Notes:     notes,
	}
	if digest != "" {
		l.KeyDigest = &digest
	}
	return l, nil
}

// NewBootstrapLicense builds the key-less license an operator-seeded tenant
// runs under. It is active from creation and has no expiry. Unlike
// NewLicense a nil maxUsers stays unlimited.
func NewBootstrapLicense(kind Kind, maxUsers *int, tenant string, now time.Time) (*License, error) {
	if maxUsers != nil && *maxUsers < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "max users must be at least 1")
	}
	if tenant == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "bootstrap license requires a tenant")
	}
	return &License{
		Kind:        kind,
		MaxUsers:    maxUsers,
		State:       StateActive,
		CreatedAt:   now,
		ActivatedAt: &now,
		TenantName:  &tenant,
		Notes:       "bootstrap",
	}, nil
}

// ExpiryFor returns the end of the validity window that starts at activatedAt.
func ExpiryFor(activatedAt time.Time) time.Time {
	return activatedAt.AddDate(termYears, 0, 0)
}

// Classify returns the state the license is effectively in at now. The stored
// state is only a cache of the last persisted transition; a passed expiry
// always wins.
func Classify(l *License, now time.Time) State {
	if l.State == StateExpired {
		return StateExpired
	}
	if l.ExpiresAt != nil && !now.Before(*l.ExpiresAt) {
		return StateExpired
	}
	return l.State
}

// NeedsExpiryWriteBack reports whether the stored state lags behind Classify.
func (l *License) NeedsExpiryWriteBack(now time.Time) bool {
	return l.State != StateExpired && Classify(l, now) == StateExpired
}

// Outcome maps the effective state to a validation outcome.
func (l *License) Outcome(now time.Time) Outcome {
	switch Classify(l, now) {
	case StateExpired:
		return OutcomeExpired
	case StatePending:
		return OutcomeRedeemable
	case StateActive:
		return OutcomeAlreadyRedeemed
	default:
		return OutcomeRevoked
	}
}

// Activate binds the license to tenant and starts its validity window.
func (l *License) Activate(tenant string, now time.Time) error {
	if Classify(l, now) != StatePending {
		return dErrors.New(dErrors.CodeInvariantViolation, "license is not pending")
	}
	expires := ExpiryFor(now)
	l.State = StateActive
	l.ActivatedAt = &now
	l.ExpiresAt = &expires
	l.TenantName = &tenant
	return nil
}

// Revoke withdraws a license that has not been redeemed.
func (l *License) Revoke(now time.Time) error {
	if Classify(l, now) != StatePending {
		return dErrors.New(dErrors.CodeInvariantViolation, "only pending licenses can be revoked")
	}
	l.State = StateRevoked
	return nil
}

// Unlimited reports whether the license places no cap on professional users.
func (l *License) Unlimited() bool {
	return l.MaxUsers == nil
}
