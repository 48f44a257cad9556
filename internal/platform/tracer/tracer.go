// Package tracer is the tracing seam for the license, tenant and therapy services.
//
// Services depend on the small Tracer interface below rather than on
// OpenTelemetry directly. OTelTracer adapts the global OpenTelemetry provider
// (a no-op unless the binary installs one); NoopTracer is for tests.
package tracer

import "context"

// Span is an active trace span. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Span names.
const (
	SpanLicenseGenerate = "license.generate"
	SpanLicenseValidate = "license.validate"
	SpanLicenseRevoke   = "license.revoke"
	SpanTenantRegister  = "tenant.register"
	SpanUserCreate      = "tenant.user.create"
	SpanPatientReport   = "therapy.patient_report"
)

// Attribute keys.
const (
	AttrLicenseID   = "license.id"
	AttrLicenseKind = "license.kind"
	AttrOutcome     = "outcome"
	AttrTenant      = "tenant.name"
	AttrUser        = "user.name"
	AttrEntries     = "report.entries"
)
