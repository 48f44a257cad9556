package handler

import (
	"strings"

	"clinictrack/internal/tenant/service"
	dErrors "clinictrack/pkg/domain-errors"
	"clinictrack/pkg/validation"
)

// maxPasswordLength stays under bcrypt's 72 byte input limit.
const maxPasswordLength = 72

type RegisterTenantRequest struct {
	Name            string `json:"name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	LicenseKey      string `json:"license_key"`
}

func (r *RegisterTenantRequest) Normalize() {
	if r == nil {
		return
	}
	r.LicenseKey = strings.TrimSpace(r.LicenseKey)
}

func (r *RegisterTenantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	switch {
	case r.Name == "":
		return dErrors.New(dErrors.CodeValidation, "name is required")
	case r.Password == "":
		return dErrors.New(dErrors.CodeValidation, "password is required")
	case len(r.Password) > maxPasswordLength:
		return dErrors.New(dErrors.CodeValidation, "password is too long")
	case r.LicenseKey == "":
		return dErrors.New(dErrors.CodeValidation, "license_key is required")
	}
	return nil
}

func (r *RegisterTenantRequest) ToCommand() service.RegisterCommand {
	return service.RegisterCommand{
		Name:            r.Name,
		Password:        r.Password,
		ConfirmPassword: r.ConfirmPassword,
		LicenseKey:      r.LicenseKey,
	}
}

type TenantLoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (r *TenantLoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Name == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "name and password are required")
	}
	return nil
}

type UserLoginRequest struct {
	Tenant   string `json:"tenant" validate:"required"`
	User     string `json:"user" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *UserLoginRequest) Normalize() {
	if r == nil {
		return
	}
	r.User = strings.TrimSpace(r.User)
}

func (r *UserLoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=128"`
	RealName string `json:"real_name" validate:"max=128"`
	Password string `json:"password" validate:"max=72"`
}

func (r *CreateUserRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.RealName = strings.TrimSpace(r.RealName)
}

func (r *CreateUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

func (r *CreateUserRequest) ToCommand(tenant string) service.CreateUserCommand {
	return service.CreateUserCommand{
		Tenant:   tenant,
		Name:     r.Name,
		RealName: r.RealName,
		Password: r.Password,
	}
}

type ChangePasswordRequest struct {
	TenantPassword string `json:"tenant_password"`
	NewPassword    string `json:"new_password"`
}

func (r *ChangePasswordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.TenantPassword == "" {
		return dErrors.New(dErrors.CodeValidation, "tenant_password is required")
	}
	if len(r.NewPassword) > maxPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "new_password is too long")
	}
	return nil
}

func (r *ChangePasswordRequest) ToCommand(tenant, user string) service.ChangePasswordCommand {
	return service.ChangePasswordCommand{
		Tenant:         tenant,
		TenantPassword: r.TenantPassword,
		User:           user,
		NewPassword:    r.NewPassword,
	}
}
