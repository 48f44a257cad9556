package handler

import (
	"net/http"
	"time"

	"clinictrack/internal/license/models"
)

type GenerateLicenseResponse struct {
	ID         int64  `json:"id"`
	LicenseKey string `json:"license_key"`
	Kind       string `json:"kind"`
	MaxUsers   *int   `json:"max_users"`
}

type ValidateLicenseResponse struct {
	Valid     bool       `json:"valid"`
	Outcome   string     `json:"outcome"`
	Message   string     `json:"message"`
	Kind      string     `json:"kind,omitempty"`
	MaxUsers  *int       `json:"max_users,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Assigned  bool       `json:"assigned,omitempty"`
}

type LicenseResponse struct {
	ID          int64      `json:"id"`
	Kind        string     `json:"kind"`
	MaxUsers    *int       `json:"max_users"`
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Tenant      *string    `json:"tenant,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

func toLicenseResponse(l *models.License) *LicenseResponse {
	return &LicenseResponse{
		ID:          l.ID,
		Kind:        string(l.Kind),
		MaxUsers:    l.MaxUsers,
		State:       string(l.State),
		CreatedAt:   l.CreatedAt,
		ActivatedAt: l.ActivatedAt,
		ExpiresAt:   l.ExpiresAt,
		Tenant:      l.TenantName,
		Notes:       l.Notes,
	}
}

// toValidateResponse renders an outcome with the status the registration UI
// switches on. Revoked licenses expose no metadata.
func toValidateResponse(outcome models.Outcome, l *models.License) (int, *ValidateLicenseResponse) {
	resp := &ValidateLicenseResponse{Outcome: string(outcome)}
	withMeta := func() {
		resp.Kind = string(l.Kind)
		resp.MaxUsers = l.MaxUsers
	}

	switch outcome {
	case models.OutcomeRedeemable:
		resp.Valid = true
		resp.Message = "license is valid"
		withMeta()
		return http.StatusOK, resp
	case models.OutcomeExpired:
		resp.Message = "license has expired"
		withMeta()
		resp.ExpiresAt = l.ExpiresAt
		return http.StatusGone, resp
	case models.OutcomeAlreadyRedeemed:
		resp.Message = "license has already been redeemed"
		withMeta()
		resp.ExpiresAt = l.ExpiresAt
		resp.Assigned = l.TenantName != nil
		return http.StatusConflict, resp
	case models.OutcomeRevoked:
		resp.Message = "license has been revoked"
		return http.StatusForbidden, resp
	default:
		resp.Outcome = string(models.OutcomeNotFound)
		resp.Message = "license is invalid"
		return http.StatusNotFound, resp
	}
}
