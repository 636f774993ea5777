package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"privata/pkg/platform/audit"
	"privata/pkg/platform/audit/publishers/compliance"
	auditmemory "privata/pkg/platform/audit/store/memory"
	"privata/pkg/requestcontext"
)

// HandlerSuite serves a seeded in-memory ledger through the routes.
// Justification: query parameter parsing and export content types live here.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := compliance.New(auditmemory.New())
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, e := range []audit.Event{
		{Action: audit.ActionCreate, EntityType: "patient", EntityID: "p-1", SubjectID: "user-1"},
		{Action: audit.ActionRead, EntityType: "patient", EntityID: "p-1", SubjectID: "user-1"},
		{Action: audit.ActionConsentGranted, EntityType: "consent", SubjectID: "user-2"},
	} {
		ctx := requestcontext.WithTime(context.Background(), s.now.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(pub.Log(ctx, e))
	}
	r := chi.NewRouter()
	New(pub, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (s *HandlerSuite) TestQueryFilters() {
	rec := s.get("/audit/events?subject_id=user-1&action=read")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var res EventsResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Require().Equal(1, res.Count)
	s.Equal(audit.ActionRead, res.Events[0].Action)

	from := s.now.Add(90 * time.Second).Format(time.RFC3339)
	rec = s.get("/audit/events?from=" + from)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Equal(1, res.Count)
	s.Equal("user-2", res.Events[0].SubjectID)
}

func (s *HandlerSuite) TestExportFormats() {
	rec := s.get("/audit/export?format=csv&subject_id=user-1")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("text/csv", rec.Header().Get("Content-Type"))
	s.Contains(rec.Header().Get("Content-Disposition"), "audit.csv")
	s.Len(strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 3)

	rec = s.get("/audit/export?format=pdf")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.True(strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func (s *HandlerSuite) TestBadParameters() {
	s.Equal(http.StatusBadRequest, s.get("/audit/events?from=yesterday").Code)
	s.Equal(http.StatusBadRequest, s.get("/audit/events?from=2026-03-02T00:00:00Z&to=2026-03-01T00:00:00Z").Code)
	s.Equal(http.StatusBadRequest, s.get("/audit/export?format=docx").Code)
}
