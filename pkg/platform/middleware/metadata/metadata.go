// Package metadata resolves the client address once per request so logging
// and rate limiting agree on who the caller is.
package metadata

import (
	"net/http"
	"net/netip"
	"strings"

	"clinictrack/pkg/requestcontext"
)

// MaxXFFHeaderLength is the maximum accepted length of X-Forwarded-For.
const MaxXFFHeaderLength = 500

// Config holds configuration for the metadata middleware.
type Config struct {
	// TrustedProxies lists the prefixes allowed to set X-Forwarded-For.
	// If empty, forwarding headers are ignored.
	TrustedProxies []netip.Prefix
}

// Middleware extracts client metadata with configurable trusted proxies.
type Middleware struct {
	config Config
}

func NewMiddleware(cfg Config) *Middleware {
	return &Middleware{config: cfg}
}

// Handler stores the resolved client IP in the request context.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientIP(r.Context(), m.clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// KeyByClientIP is an httprate key function over the resolved address.
func KeyByClientIP(r *http.Request) (string, error) {
	if ip := requestcontext.ClientIP(r.Context()); ip != "" {
		return ip, nil
	}
	return parseRemoteAddr(r.RemoteAddr), nil
}

func (m *Middleware) clientIP(r *http.Request) string {
	remoteIP := parseRemoteAddr(r.RemoteAddr)
	if remoteIP == "" {
		return "unknown"
	}
	if !m.isTrustedProxy(remoteIP) {
		return remoteIP
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && len(xri) <= MaxXFFHeaderLength {
			if _, err := netip.ParseAddr(xri); err == nil {
				return xri
			}
		}
		return remoteIP
	}
	if len(xff) > MaxXFFHeaderLength {
		return remoteIP
	}

	first, _, _ := strings.Cut(xff, ",")
	clientIP := strings.TrimSpace(first)
	if _, err := netip.ParseAddr(clientIP); err != nil {
		return remoteIP
	}
	return clientIP
}

func (m *Middleware) isTrustedProxy(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range m.config.TrustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// parseRemoteAddr strips the port from RemoteAddr.
func parseRemoteAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	if addrPort, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return addrPort.Addr().String()
	}
	if addr, err := netip.ParseAddr(strings.Trim(remoteAddr, "[]")); err == nil {
		return addr.String()
	}
	return remoteAddr
}
