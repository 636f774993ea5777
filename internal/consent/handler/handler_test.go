package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"privata/internal/consent/service"
	"privata/internal/consent/store"
	"privata/pkg/platform/audit"
	"privata/pkg/platform/audit/publishers/compliance"
	auditmemory "privata/pkg/platform/audit/store/memory"
)

// HandlerSuite drives the routes through chi with a real service on the
// in-memory ledger.
// Justification: path parameter parsing and status mapping live here.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	audit  *auditmemory.Store
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.audit = auditmemory.New()
	svc := service.New(store.New(), compliance.New(s.audit), service.WithLogger(logger))

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestGrantThenCheck() {
	rec := s.do(http.MethodPost, "/consents/user-1", `{"purpose":" marketing ","ttl_seconds":3600}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var granted ConsentResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &granted))
	s.Equal("marketing", granted.Purpose)
	s.Equal("active", string(granted.Status))

	rec = s.do(http.MethodGet, "/consents/user-1/marketing", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var check CheckResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &check))
	s.True(check.Active)
}

func (s *HandlerSuite) TestWithdrawThenHistory() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/consents/user-1", `{"purpose":"analytics"}`).Code)

	rec := s.do(http.MethodDelete, "/consents/user-1/analytics", "")
	s.Require().Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/consents/user-1", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var history HistoryResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &history))
	s.Require().Len(history.Consents, 1)
	s.Equal("withdrawn", string(history.Consents[0].Status))

	s.Equal(2, s.audit.Len())
}

func (s *HandlerSuite) TestWithdrawWithoutConsentSucceeds() {
	rec := s.do(http.MethodDelete, "/consents/user-2/marketing", "")
	s.Equal(http.StatusNoContent, rec.Code)

	events, _, err := s.audit.Scan(s.T().Context(), audit.Filter{SubjectID: "user-2"}, audit.Page{})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionConsentWithdrawalAttempted, events[0].Action)
}

func (s *HandlerSuite) TestGrantRejectsInvalidBody() {
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/consents/user-1", `{"purpose":""}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/consents/user-1", `{"purpose":"x","ttl_seconds":-1}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/consents/user-1", `{"unknown":true}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/consents/user-1", `not json`).Code)
}
