package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/validation"
)

// DecodeJSON decodes the request body into T. On failure it writes a
// bad_request response and returns false.
func DecodeJSON[T any](ctx context.Context, w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, validation.MaxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, dErrors.New(dErrors.CodeTooLarge, "request body too large"))
			return nil, false
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	return &req, true
}

// Normalizable is implemented by request types that clean their own input.
type Normalizable interface {
	Normalize()
}

// DecodeAndValidate decodes the body, normalizes it when T supports that, and
// runs struct-tag validation.
func DecodeAndValidate[T any](ctx context.Context, w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req, ok := DecodeJSON[T](ctx, w, r, logger)
	if !ok {
		return nil, false
	}
	if n, ok := any(req).(Normalizable); ok {
		n.Normalize()
	}
	if err := validation.Struct(req); err != nil {
		logger.WarnContext(ctx, "invalid request", "error", err)
		var domainErr *dErrors.Error
		if !errors.As(err, &domainErr) {
			err = dErrors.New(dErrors.CodeValidation, err.Error())
		}
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
