package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"clinictrack/pkg/platform/httputil"
	"clinictrack/pkg/requestcontext"
)

type (
	adminAuthorizedKey struct{}
	adminActorKey      struct{}
)

// IsAdminRequest reports whether RequireAdminToken accepted this request.
func IsAdminRequest(ctx context.Context) bool {
	ok, _ := ctx.Value(adminAuthorizedKey{}).(bool)
	return ok
}

// GetAdminActorID returns the X-Admin-Actor-ID supplied with an admin
// request, or "" when absent.
func GetAdminActorID(ctx context.Context) string {
	if actorID, ok := ctx.Value(adminActorKey{}).(string); ok {
		return actorID
	}
	return ""
}

// RequireAdminToken guards back-office routes with a shared secret sent in
// X-Admin-Token. An empty expected token locks the routes entirely.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get("X-Admin-Token")
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"error":             "unauthorized",
					"error_description": "admin token required",
				})
				return
			}

			ctx = context.WithValue(ctx, adminAuthorizedKey{}, true)
			if actorID := r.Header.Get("X-Admin-Actor-ID"); actorID != "" {
				ctx = context.WithValue(ctx, adminActorKey{}, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
