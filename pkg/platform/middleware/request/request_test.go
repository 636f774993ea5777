package request

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privata/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"missing header gets a uuid", "", false},
		{"plain id is kept", "req-42.retry_1", true},
		{"id at the length cap is kept", strings.Repeat("a", MaxRequestIDLength), true},
		{"overlong id is replaced", strings.Repeat("a", MaxRequestIDLength+1), false},
		{"newline is replaced", "abc\ninjected", false},
		{"spaces are replaced", "abc def", false},
		{"quotes are replaced", `abc"def`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = requestcontext.RequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
			if tt.keep {
				assert.Equal(t, tt.header, seen)
			} else {
				assert.NotEqual(t, tt.header, seen)
				assert.Len(t, seen, 36)
			}
		})
	}
}

func TestLoggerRedactsSubjectPaths(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(Logger(logger))
	r.Get("/subjects/{subjectID}/rights", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/subjects/jane.doe@example.com/rights", nil))
	line := buf.String()
	assert.Contains(t, line, `"route":"/subjects/{subjectID}/rights"`)
	assert.Contains(t, line, `"status":202`)
	assert.NotContains(t, line, "jane.doe")

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Empty(t, buf.String(), "healthy probes are not logged")

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/subjects/x", nil))
	assert.Contains(t, buf.String(), `"route":"unmatched"`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestRequestTimePinsNow(t *testing.T) {
	var first, second time.Time
	h := RequestTime(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		first = requestcontext.Now(r.Context())
		time.Sleep(time.Millisecond)
		second = requestcontext.Now(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, first, second)
	assert.Equal(t, time.UTC, first.Location())
}

func TestTimeoutSetsDeadline(t *testing.T) {
	var deadline time.Time
	h := Timeout(time.Minute)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deadline, _ = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestRecoveryWritesErrorEnvelope(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, rec.Body.String())
}

func TestContentTypeJSON(t *testing.T) {
	h := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	tests := []struct {
		method, contentType string
		want                int
	}{
		{http.MethodPost, "application/json; charset=utf-8", http.StatusNoContent},
		{http.MethodPost, "", http.StatusNoContent},
		{http.MethodPatch, "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodGet, "text/plain", http.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/", strings.NewReader("{}"))
		if tt.contentType != "" {
			req.Header.Set("Content-Type", tt.contentType)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, "%s %q", tt.method, tt.contentType)
	}
}
