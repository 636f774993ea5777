// Package httputil holds the JSON response and error translation helpers
// shared by every HTTP handler.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "privata/pkg/domain-errors"
)

// WriteJSON writes response as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encode error cannot change the status.
	_ = json.NewEncoder(w).Encode(response)
}

// DetailedError is implemented by errors that carry a structured body, such
// as a compliance denial carrying its decision.
type DetailedError interface {
	error
	ErrorDetails() any
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Details     any    `json:"details,omitempty"`
}

// WriteError translates a domain error into an HTTP response.
func WriteError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: string(dErrors.CodeInternal)}
	status := http.StatusInternalServerError

	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status = DomainCodeToHTTPStatus(domainErr.Code)
		resp.Error = string(domainErr.Code)
		// Internal failures never leak their message.
		if status != http.StatusInternalServerError {
			resp.Description = domainErr.Message
		}
	}
	var detailed DetailedError
	if errors.As(err, &detailed) {
		resp.Details = detailed.ErrorDetails()
	}
	WriteJSON(w, status, resp)
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeUnknownModel:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeComplianceDenied:
		return http.StatusForbidden
	case dErrors.CodeRegionUndetermined:
		return http.StatusUnprocessableEntity
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case dErrors.CodeUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case dErrors.CodeConsentCheckFailed, dErrors.CodeAuditWriteFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
