package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "clinictrack/pkg/domain-errors"
	"clinictrack/pkg/requestcontext"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

type errorMapping struct {
	status int
	// wire is the "error" field; empty means the code itself.
	wire string
}

var errorMappings = map[dErrors.Code]errorMapping{
	dErrors.CodeNotFound:             {http.StatusNotFound, "not_found"},
	dErrors.CodeBadRequest:           {http.StatusBadRequest, "bad_request"},
	dErrors.CodeInvalidInput:         {http.StatusBadRequest, "bad_request"},
	dErrors.CodeValidation:           {http.StatusBadRequest, "validation_error"},
	dErrors.CodeInvariantViolation:   {http.StatusBadRequest, "validation_error"},
	dErrors.CodeConflict:             {http.StatusConflict, "conflict"},
	dErrors.CodeUnauthorized:         {http.StatusUnauthorized, "unauthorized"},
	dErrors.CodeForbidden:            {http.StatusForbidden, "forbidden"},
	dErrors.CodeInvalidLicense:       {http.StatusBadRequest, ""},
	dErrors.CodeLicenseNotRedeemable: {http.StatusConflict, ""},
	dErrors.CodeNameTaken:            {http.StatusConflict, ""},
	dErrors.CodeUserLimitReached:     {http.StatusForbidden, ""},
}

// WriteError renders err as {"error", "error_description"}. Uncoded and
// internal errors render as a bare internal_error.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := DomainCodeToHTTPStatus(code)
	body := map[string]string{"error": DomainCodeToHTTPCode(code)}

	var de *dErrors.Error
	if status != http.StatusInternalServerError && errors.As(err, &de) && de.Message != "" {
		body["error_description"] = de.Message
	}
	WriteJSON(w, status, body)
}

func DomainCodeToHTTPStatus(code dErrors.Code) int {
	if m, ok := errorMappings[code]; ok {
		return m.status
	}
	return http.StatusInternalServerError
}

func DomainCodeToHTTPCode(code dErrors.Code) string {
	m, ok := errorMappings[code]
	switch {
	case !ok:
		return "internal_error"
	case m.wire == "":
		return string(code)
	default:
		return m.wire
	}
}

// RequirePrincipal extracts the authenticated caller from context.
func RequirePrincipal(ctx context.Context, logger *slog.Logger, requestID string) (requestcontext.Principal, error) {
	p, ok := requestcontext.GetPrincipal(ctx)
	if !ok {
		if logger != nil {
			logger.ErrorContext(ctx, "principal missing from context despite auth middleware",
				"request_id", requestID)
		}
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeInternal, "authentication context error")
	}
	return p, nil
}

// RequireTenantAccess ensures the caller's token belongs to tenant.
func RequireTenantAccess(ctx context.Context, tenant string, logger *slog.Logger, requestID string) (requestcontext.Principal, error) {
	p, err := RequirePrincipal(ctx, logger, requestID)
	if err != nil {
		return p, err
	}
	if p.Tenant != tenant {
		return p, dErrors.New(dErrors.CodeForbidden, "token does not grant access to this tenant")
	}
	return p, nil
}
