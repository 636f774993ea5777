package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// Codes describe what went wrong in compliance terms, not HTTP terms.
type Code string

const (
	CodeNotFound         Code = "not_found"
	CodeBadRequest       Code = "bad_request"
	CodeInvalidInput     Code = "invalid_input"
	CodeValidation       Code = "validation_failed"
	CodeInternal         Code = "internal_error"
	CodeConflict         Code = "conflict"
	CodeUnauthorized     Code = "unauthorized"
	CodeTimeout          Code = "timeout"
	CodeRateLimited      Code = "rate_limited"
	CodeTooLarge         Code = "payload_too_large"
	CodeUnsupportedMedia Code = "unsupported_media_type"

	// Compliance taxonomy. Every code below is fail-closed: callers must
	// treat it as a denial of the operation that produced it.
	CodeConsentCheckFailed Code = "consent_check_failed"
	CodeRegionUndetermined Code = "region_undetermined"
	CodeComplianceDenied   Code = "compliance_denied"
	CodeUnknownModel       Code = "unknown_model"
	CodeAuditWriteFailed   Code = "audit_write_failed"
	CodeRightsStepFailed   Code = "rights_step_failed"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// Force wraps err with code even when err already carries a different code.
// Used where the compliance taxonomy must override an infrastructure code,
// e.g. an audit store timeout that has to surface as audit_write_failed.
func Force(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the outermost domain code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
