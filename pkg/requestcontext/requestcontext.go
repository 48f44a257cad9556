// Package requestcontext holds the per-request values set by middleware and
// read by handlers and services.
package requestcontext

import "context"

type (
	requestIDKey struct{}
	clientIPKey  struct{}
	principalKey struct{}
)

// Role distinguishes the two kinds of accounts that can hold a bearer token.
type Role string

const (
	RoleTenant       Role = "tenant"
	RoleProfessional Role = "professional"
)

// Principal is the authenticated caller behind a bearer token.
type Principal struct {
	Tenant string
	User   string // empty for the tenant account itself
	Role   Role
	Admin  bool
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request id or "" outside a request.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal returns the authenticated caller, if the auth middleware ran.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
