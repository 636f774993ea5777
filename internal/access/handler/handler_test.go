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

	"privata/internal/access"
	consentservice "privata/internal/consent/service"
	consentstore "privata/internal/consent/store"
	"privata/internal/gate"
	"privata/internal/gate/adapters"
	"privata/internal/query"
	regionservice "privata/internal/region/service"
	regionstore "privata/internal/region/store"
	restrictionservice "privata/internal/restriction/service"
	restrictionstore "privata/internal/restriction/store"
	"privata/internal/schema"
	"privata/internal/storage"
	"privata/internal/storage/memory"
	"privata/pkg/domain"
	"privata/pkg/platform/audit/publishers/compliance"
	auditmemory "privata/pkg/platform/audit/store/memory"
)

// HandlerSuite drives the data API over the real engine, gate and in-memory
// regional stores.
// Justification: header parsing, query body translation and the denial body
// carrying the decision are handled here.
type HandlerSuite struct {
	suite.Suite
	router  http.Handler
	consent *consentservice.Service
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	schemas := schema.NewRegistry()
	s.Require().NoError(schemas.Register(schema.ModelSchema{
		Name: "patient",
		Fields: map[string]schema.Class{
			"name":    schema.ClassPII,
			"status":  schema.ClassMetadata,
			"country": schema.ClassMetadata,
		},
	}))
	auditor := compliance.New(auditmemory.New())
	s.consent = consentservice.New(consentstore.New(), auditor, consentservice.WithLogger(logger))
	restrictions := restrictionservice.New(restrictionstore.New(), auditor, restrictionservice.WithLogger(logger))
	g := gate.New(schemas, adapters.NewConsentAdapter(s.consent), restrictions, auditor,
		gate.WithMode(gate.ModeStrict), gate.WithLogger(logger))
	stores := storage.NewRegistry()
	stores.Register(domain.RegionEU, memory.New())
	stores.Register(domain.RegionUS, memory.New())

	engine := access.New(schemas, regionservice.New(regionstore.New(), regionservice.WithLogger(logger)), g, stores, auditor,
		access.WithLogger(logger))
	r := chi.NewRouter()
	New(engine, query.NewFilter(engine, logger), logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path, subject, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if subject != "" {
		req.Header.Set(HeaderSubject, subject)
	}
	req.Header.Set(HeaderPurpose, "care")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestCreateReadQueryDelete() {
	_, err := s.consent.Grant(s.T().Context(), "user-1", "care", nil, 0)
	s.Require().NoError(err)

	rec := s.do(http.MethodPost, "/data/patient", "user-1", `{"data":{"name":"Ana","status":"active","country":"DE"}}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created RecordResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Record.ID()
	s.Require().NotEmpty(id)

	rec = s.do(http.MethodGet, "/data/patient/"+id+"?fields=name", "user-1", "")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var found RecordResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &found))
	s.Equal("Ana", found.Record["name"])
	s.NotContains(found.Record, "status")

	rec = s.do(http.MethodPost, "/data/patient/query", "user-1",
		`{"select":["name","status"],"where":{"field":"status","op":"eq","value":"active"},"limit":10}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var res query.Result
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Require().Len(res.Records, 1)
	s.Equal(gate.OutcomeAllowed, res.Decision.Outcome)
	s.Equal(100, res.Score)

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/data/patient/"+id, "user-1", "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/data/patient/"+id, "user-1", "").Code)
}

func (s *HandlerSuite) TestDeniedQueryCarriesDecision() {
	// Without consent only the metadata is written.
	rec := s.do(http.MethodPost, "/data/patient", "user-2", `{"data":{"name":"Ana","status":"new","country":"DE"}}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/data/patient/query", "user-2", `{"where":{"field":"name","op":"eq","value":"Ana"}}`)
	s.Require().Equal(http.StatusForbidden, rec.Code, rec.Body.String())
	var body struct {
		Error   string        `json:"error"`
		Details gate.Decision `json:"details"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("compliance_denied", body.Error)
	s.Equal(gate.OutcomeDenied, body.Details.Outcome)
}

func (s *HandlerSuite) TestBadRequests() {
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/data/patient/1", "", "").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/data/invoice", "user-1", `{"data":{"x":1}}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/data/patient", "user-1", `{"data":{}}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/data/patient/query", "user-1", `{"limit":5000}`).Code)
}
