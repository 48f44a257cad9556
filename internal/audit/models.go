// Package audit records who did what to licenses and tenants. Events are
// append-only and keyed by tenant so a clinic's history can be listed.
package audit

import "time"

// Event is emitted from domain logic after a change commits. Tenant is empty
// for events that happen before a tenant exists, such as license generation.
type Event struct {
	ID        int64
	Timestamp time.Time
	Action    Action
	Tenant    string
	Actor     string
	Subject   string
	Reason    string
	RequestID string
}

type Action string

const (
	ActionLicenseGenerated Action = "license_generated"
	ActionLicenseRevoked   Action = "license_revoked"
	ActionLicenseExpired   Action = "license_expired"
	ActionTenantRegistered Action = "tenant_registered"
	ActionUserCreated      Action = "user_created"
	ActionPasswordChanged  Action = "password_changed"
)

const (
	// DefaultListLimit applies when a listing asks for no particular size.
	DefaultListLimit = 100
	// MaxListLimit caps a single listing.
	MaxListLimit = 500
)
