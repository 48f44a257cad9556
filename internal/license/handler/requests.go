package handler

import (
	"strings"

	"clinictrack/internal/license/models"
	"clinictrack/internal/license/service"
	dErrors "clinictrack/pkg/domain-errors"
)

// maxNotesLength bounds the free-text notes attached to a generated license.
const maxNotesLength = 1000

type GenerateLicenseRequest struct {
	Kind     string `json:"kind"`
	MaxUsers *int   `json:"max_users,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

func (r *GenerateLicenseRequest) Normalize() {
	if r == nil {
		return
	}
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *GenerateLicenseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Kind == "" {
		return dErrors.New(dErrors.CodeValidation, "kind is required")
	}
	if r.MaxUsers != nil && *r.MaxUsers < 1 {
		return dErrors.New(dErrors.CodeValidation, "max_users must be at least 1")
	}
	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	return nil
}

func (r *GenerateLicenseRequest) ToCommand() service.GenerateCommand {
	return service.GenerateCommand{
		Kind:     models.Kind(r.Kind),
		MaxUsers: r.MaxUsers,
		Notes:    r.Notes,
	}
}

type ValidateLicenseRequest struct {
	LicenseKey string `json:"license_key"`
}

func (r *ValidateLicenseRequest) Normalize() {
	if r == nil {
		return
	}
	r.LicenseKey = strings.TrimSpace(r.LicenseKey)
}

func (r *ValidateLicenseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.LicenseKey == "" {
		return dErrors.New(dErrors.CodeValidation, "license_key is required")
	}
	return nil
}
