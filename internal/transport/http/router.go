// Package httptransport assembles the HTTP surface from the domain handlers.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	audithandler "clinictrack/internal/audit/handler"
	licensehandler "clinictrack/internal/license/handler"
	"clinictrack/internal/platform/health"
	tenanthandler "clinictrack/internal/tenant/handler"
	therapyhandler "clinictrack/internal/therapy/handler"
	"clinictrack/pkg/platform/httputil"
	"clinictrack/pkg/platform/middleware/admin"
	authmw "clinictrack/pkg/platform/middleware/auth"
	"clinictrack/pkg/platform/middleware/metadata"
	"clinictrack/pkg/platform/middleware/request"
	"clinictrack/pkg/requestcontext"
)

type Deps struct {
	Logger  *slog.Logger
	Tokens  authmw.TokenValidator
	Metrics *request.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	Licenses *licensehandler.Handler
	Tenants  *tenanthandler.Handler
	Therapy  *therapyhandler.Handler
	Health   *health.Handler
	// Audit mounts GET /admin/audit when set.
	Audit *audithandler.Handler

	AdminToken         string
	TrustedProxies     []netip.Prefix
	RequestTimeout     time.Duration
	MaxBodyBytes       int64
	RateLimitPerMinute int
}

// NewRouter wires every endpoint behind the shared middleware stack.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(metadata.Config{TrustedProxies: d.TrustedProxies}).Handler)
	r.Use(request.Logger(d.Logger))
	r.Use(request.Latency(d.Metrics))
	if d.RequestTimeout > 0 {
		r.Use(request.Timeout(d.RequestTimeout))
	}
	if d.MaxBodyBytes > 0 {
		r.Use(request.BodyLimit(d.MaxBodyBytes))
	}
	r.Use(request.ContentTypeJSON)

	d.Health.Register(r)
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	// Key validation and registration are the brute-force surfaces.
	r.Group(func(r chi.Router) {
		r.Use(rateLimit(d.RateLimitPerMinute))
		d.Licenses.RegisterPublic(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(rateLimit(d.RateLimitPerMinute))
		d.Tenants.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(d.AdminToken, d.Logger))
		d.Licenses.RegisterAdmin(r)
		if d.Audit != nil {
			d.Audit.RegisterAdmin(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Tokens, d.Logger))
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireRole(d.Logger, requestcontext.RoleTenant))
			d.Tenants.RegisterProtected(r)
		})
		d.Therapy.Register(r)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{
			"error":             "not_found",
			"error_description": "route not found",
		})
	})
	return r
}

func rateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute < 1 {
		perMinute = 1
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(metadata.KeyByClientIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limited",
				"error_description": "too many requests, try again later",
			})
		}),
	)
}
