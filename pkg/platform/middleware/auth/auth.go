package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"clinictrack/pkg/platform/httputil"
	"clinictrack/pkg/requestcontext"
)

// TokenValidator verifies a bearer token and returns the caller it names.
type TokenValidator interface {
	ValidateToken(tokenString string) (requestcontext.Principal, error)
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "unauthorized",
		"error_description": description,
	})
}

// RequireAuth validates the Authorization bearer token and stores the
// principal in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			principal, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, principal)))
		})
	}
}

// RequireRole rejects authenticated callers whose role is not listed.
func RequireRole(logger *slog.Logger, roles ...requestcontext.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, ok := requestcontext.GetPrincipal(ctx)
			if ok {
				for _, role := range roles {
					if p.Role == role {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			logger.WarnContext(ctx, "forbidden - role not allowed",
				"role", p.Role,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteJSON(w, http.StatusForbidden, map[string]string{
				"error":             "forbidden",
				"error_description": "role not allowed for this operation",
			})
		})
	}
}
