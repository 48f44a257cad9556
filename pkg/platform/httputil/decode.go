package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "clinictrack/pkg/domain-errors"
)

// DecodeJSON reads the body into a new T. On failure the 400 response is
// already written and ok is false.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req := new(T)
	err := json.NewDecoder(r.Body).Decode(req)
	if err == nil {
		return req, true
	}
	logger.WarnContext(ctx, "failed to decode request body", "error", err, "request_id", requestID)
	WriteError(w, dErrors.New(dErrors.CodeBadRequest, decodeFailure(err)))
	return nil, false
}

func decodeFailure(err error) string {
	var tooLarge *http.MaxBytesError
	if errors.Is(err, io.EOF) {
		return "request body is required"
	}
	if errors.As(err, &tooLarge) {
		return "request body too large"
	}
	return "invalid request body"
}

type Validatable interface {
	Validate() error
}

// Normalizable requests trim or canonicalise fields before validation.
type Normalizable interface {
	Normalize()
}

// PrepareRequest runs Normalize then Validate on req when it has them.
func PrepareRequest(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	v, ok := req.(Validatable)
	if !ok {
		return nil
	}
	return v.Validate()
}

// DecodeAndPrepare is DecodeJSON followed by PrepareRequest. Validation
// errors without a domain code are reported as validation failures.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger, ctx, requestID)
	if !ok {
		return nil, false
	}
	err := PrepareRequest(req)
	if err == nil {
		return req, true
	}
	logger.WarnContext(ctx, "invalid request", "error", err, "request_id", requestID)
	if dErrors.CodeOf(err) == "" {
		err = dErrors.New(dErrors.CodeValidation, err.Error())
	}
	WriteError(w, err)
	return nil, false
}
