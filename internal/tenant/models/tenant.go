package models

import (
	"strings"
	"time"

	dErrors "clinictrack/pkg/domain-errors"
)

const (
	MinTenantNameLength = 3
	MaxTenantNameLength = 128
	MinUserNameLength   = 3
	MaxUserNameLength   = 128
	MinPasswordLength   = 6
)

// Tenant is an institution account. Names are unique and case-sensitive.
type Tenant struct {
	Name           string
	PasswordDigest string
	// LegacyUserLimit is the cap stored on the tenant row. For licensed
	// tenants it is a snapshot taken at redemption; the license wins.
	LegacyUserLimit *int
	LicenseID       *int64
	IsAdmin         bool
	CreatedAt       time.Time
}

func NewTenant(name, passwordDigest string, licenseID *int64, limitSnapshot *int, now time.Time) (*Tenant, error) {
	if err := ValidateTenantName(name); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, err.Error())
	}
	if passwordDigest == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password digest is required")
	}
	return &Tenant{
		Name:            name,
		PasswordDigest:  passwordDigest,
		LegacyUserLimit: limitSnapshot,
		LicenseID:       licenseID,
		CreatedAt:       now,
	}, nil
}

// ValidateTenantName checks length only; any printable name is accepted.
func ValidateTenantName(name string) error {
	switch {
	case strings.TrimSpace(name) != name:
		return dErrors.New(dErrors.CodeValidation, "tenant name must not have surrounding spaces")
	case len(name) < MinTenantNameLength:
		return dErrors.New(dErrors.CodeValidation, "tenant name must be at least 3 characters")
	case len(name) > MaxTenantNameLength:
		return dErrors.New(dErrors.CodeValidation, "tenant name must be 128 characters or less")
	}
	return nil
}

// ProfessionalUser belongs to exactly one tenant; (Tenant, Name) is its identity.
type ProfessionalUser struct {
	Tenant         string
	Name           string
	RealName       string
	PasswordDigest string
	CreatedAt      time.Time
}

func NewProfessionalUser(tenant, name, realName, passwordDigest string, now time.Time) (*ProfessionalUser, error) {
	if tenant == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant is required")
	}
	if len(name) < MinUserNameLength || len(name) > MaxUserNameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user name must be between 3 and 128 characters")
	}
	if passwordDigest == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password digest is required")
	}
	return &ProfessionalUser{
		Tenant:         tenant,
		Name:           name,
		RealName:       realName,
		PasswordDigest: passwordDigest,
		CreatedAt:      now,
	}, nil
}
