package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "privata/pkg/domain-errors"
)

type grantRequest struct {
	Purpose string `json:"purpose" validate:"required,max=100"`
}

func (r *grantRequest) Normalize() {
	r.Purpose = strings.TrimSpace(strings.ToLower(r.Purpose))
}

type deniedErr struct{ fields []string }

func (e deniedErr) Error() string     { return "denied" }
func (e deniedErr) ErrorDetails() any { return map[string]any{"denied_fields": e.fields} }

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestDecodeAndValidateNormalizes(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"purpose":"  Marketing "}`))

	req, ok := DecodeAndValidate[grantRequest](context.Background(), rec, r, discard)
	require.True(t, ok)
	assert.Equal(t, "marketing", req.Purpose)
}

func TestDecodeAndValidateRejectsMissingField(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"purpose":"  "}`))

	_, ok := DecodeAndValidate[grantRequest](context.Background(), rec, r, discard)
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(dErrors.CodeValidation), decodeBody(t, rec).Error)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"purpose":"x","extra":1}`))

	_, ok := DecodeJSON[grantRequest](context.Background(), rec, r, discard)
	require.False(t, ok)
	assert.Equal(t, string(dErrors.CodeBadRequest), decodeBody(t, rec).Error)
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeNotFound:           http.StatusNotFound,
		dErrors.CodeUnknownModel:       http.StatusBadRequest,
		dErrors.CodeComplianceDenied:   http.StatusForbidden,
		dErrors.CodeRegionUndetermined: http.StatusUnprocessableEntity,
		dErrors.CodeConsentCheckFailed: http.StatusServiceUnavailable,
		dErrors.CodeAuditWriteFailed:   http.StatusServiceUnavailable,
		dErrors.CodeInternal:           http.StatusInternalServerError,
	}
	for code, status := range cases {
		rec := httptest.NewRecorder()
		WriteError(rec, dErrors.New(code, "msg"))
		assert.Equal(t, status, rec.Code, code)
	}
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, dErrors.New(dErrors.CodeInternal, "pq: connection refused"))
	assert.Empty(t, decodeBody(t, rec).Description)
}

func TestWriteErrorIncludesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := dErrors.Wrap(deniedErr{fields: []string{"ssn"}}, dErrors.CodeComplianceDenied, "denied")
	WriteError(rec, err)

	body := decodeBody(t, rec)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, map[string]any{"denied_fields": []any{"ssn"}}, body.Details)
}
