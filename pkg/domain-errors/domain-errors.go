// Package domainerrors carries a stable, transport-independent code on every
// failure a service returns. Handlers map codes to HTTP; stores never see them.
package domainerrors

import "errors"

type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeInternal           Code = "internal_error"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInvariantViolation Code = "invariant_violation"

	// The key matches no license.
	CodeInvalidLicense Code = "invalid_license"
	// The license exists but is active, revoked or expired.
	CodeLicenseNotRedeemable Code = "license_not_redeemable"
	CodeNameTaken            Code = "name_taken"
	CodeUserLimitReached     Code = "user_limit_reached"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, &Error{Code: c})
// works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches msg to err. A coded err keeps its code and code is ignored.
func Wrap(err error, code Code, msg string) error {
	if existing := CodeOf(err); existing != "" {
		code = existing
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost code in err's chain, or "" when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
