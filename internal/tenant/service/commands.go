package service

import (
	"strings"

	licensemodels "clinictrack/internal/license/models"
	"clinictrack/internal/tenant/models"
	dErrors "clinictrack/pkg/domain-errors"
)

const minLicenseKeyLength = 8

// RegisterCommand creates a tenant by redeeming a license key.
type RegisterCommand struct {
	Name            string
	Password        string
	ConfirmPassword string
	LicenseKey      string
}

func (c *RegisterCommand) Validate() error {
	if err := models.ValidateTenantName(c.Name); err != nil {
		return err
	}
	if err := validatePassword(c.Password); err != nil {
		return err
	}
	if c.Password != c.ConfirmPassword {
		return dErrors.New(dErrors.CodeValidation, "passwords do not match")
	}
	if len(strings.TrimSpace(c.LicenseKey)) < minLicenseKeyLength {
		return dErrors.New(dErrors.CodeValidation, "license key is too short")
	}
	return nil
}

// RegisterResult is the new tenant and the license it redeemed.
type RegisterResult struct {
	Tenant  *models.Tenant
	License *licensemodels.License
}

type CreateUserCommand struct {
	Tenant   string
	Name     string
	RealName string
	Password string
}

func (c *CreateUserCommand) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.RealName = strings.TrimSpace(c.RealName)
	if len(c.Name) < models.MinUserNameLength || len(c.Name) > models.MaxUserNameLength {
		return dErrors.New(dErrors.CodeValidation, "user name must be between 3 and 128 characters")
	}
	return validatePassword(c.Password)
}

// ChangePasswordCommand resets a professional's password. The tenant account
// authorises the change with its own password.
type ChangePasswordCommand struct {
	Tenant         string
	TenantPassword string
	User           string
	NewPassword    string
}

func (c *ChangePasswordCommand) Validate() error {
	if c.TenantPassword == "" {
		return dErrors.New(dErrors.CodeValidation, "tenant password is required")
	}
	if strings.TrimSpace(c.User) == "" {
		return dErrors.New(dErrors.CodeValidation, "user is required")
	}
	return validatePassword(c.NewPassword)
}

// TenantLogin is the result of a successful tenant authentication.
// LicenseKind is empty for tenants without a license.
type TenantLogin struct {
	Tenant      *models.Tenant
	LicenseKind licensemodels.Kind
	IsAdmin     bool
}

// Capacity is the user limit of a tenant together with its current usage.
type Capacity struct {
	Limit   models.UserLimit
	Current int
}

func (c Capacity) CanAdd() bool {
	return c.Limit.Admits(c.Current)
}

func validatePassword(p string) error {
	if len(p) < models.MinPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 6 characters")
	}
	return nil
}
