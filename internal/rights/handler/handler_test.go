package handler

import (
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
	"go.uber.org/mock/gomock"

	jwttoken "privata/internal/jwt_token"
	"privata/internal/rights/mocks"
	"privata/internal/rights/models"
	"privata/internal/rights/service"
	"privata/internal/rights/store"
	"privata/internal/storage"
	"privata/pkg/domain"
	"privata/pkg/platform/audit/publishers/compliance"
	auditmemory "privata/pkg/platform/audit/store/memory"
)

// HandlerSuite drives the rights routes through chi with a real service over
// the in-memory request store; the data engine is mocked.
// Justification: status codes, path parsing and hiding the package from the
// request body are decided here.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	data   *mocks.MockDataAccess
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctrl := gomock.NewController(s.T())
	s.data = mocks.NewMockDataAccess(ctrl)
	s.data.EXPECT().Models().Return([]string{"patient"}).AnyTimes()

	svc := service.New(store.New(), s.data, mocks.NewMockConsent(ctrl), mocks.NewMockRestrictor(ctrl),
		compliance.New(auditmemory.New()),
		service.WithLogger(logger),
		service.WithTokens(jwttoken.New("handler-test-key", "privata"), time.Hour),
	)
	r := chi.NewRouter()
	h := New(svc, logger)
	h.Register(r)
	h.RegisterPublic(r)
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

func (s *HandlerSuite) submit(body string) RequestResponse {
	rec := s.do(http.MethodPost, "/subjects/user-1/rights", body)
	s.Require().Equal(http.StatusAccepted, rec.Code, rec.Body.String())
	var res RequestResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func (s *HandlerSuite) TestSubmitExecuteAndGet() {
	submitted := s.submit(`{"kind":"Access","verification_method":"email"}`)
	s.Equal(models.KindAccess, submitted.Kind)
	s.Equal(models.StatusPending, submitted.Status)

	s.data.EXPECT().SubjectRecords(gomock.Any(), domain.SubjectID("user-1"), "patient").
		Return([]storage.Record{{"id": "p-1", "name": "Ana"}}, nil)
	rec := s.do(http.MethodPost, "/rights/"+submitted.ID+"/execute", "")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/rights/"+submitted.ID, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var got RequestResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal(models.StatusCompleted, got.Status)
	s.Require().NotNil(got.Result)
	s.Equal("Ana", got.Result.Records["patient"][0]["name"])

	rec = s.do(http.MethodGet, "/subjects/user-1/rights", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var list ListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.Len(list.Requests, 1)
}

func (s *HandlerSuite) TestFailedExecutionReportsRequest() {
	submitted := s.submit(`{"kind":"access","verification_method":"carrier_pigeon"}`)

	rec := s.do(http.MethodPost, "/rights/"+submitted.ID+"/execute", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var got RequestResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal(models.StatusFailed, got.Status)
	s.NotEmpty(got.Result.Error)
}

func (s *HandlerSuite) TestPortabilityDownload() {
	submitted := s.submit(`{"kind":"portability","verification_method":"email","params":{"models":["patient"]}}`)
	s.data.EXPECT().SubjectRecords(gomock.Any(), domain.SubjectID("user-1"), "patient").
		Return([]storage.Record{{"id": "p-1"}}, nil)

	rec := s.do(http.MethodPost, "/rights/"+submitted.ID+"/execute", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var got RequestResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Require().NotEmpty(got.Result.DownloadToken)
	s.NotContains(rec.Body.String(), `"package"`)

	rec = s.do(http.MethodGet, "/rights/download?token="+got.Result.DownloadToken, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Disposition"), "attachment")
	s.Contains(rec.Body.String(), `"subject_id":"user-1"`)

	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/rights/download", "").Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/rights/download?token=junk", "").Code)
}

func (s *HandlerSuite) TestBadInput() {
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/subjects/user-1/rights", `{"kind":"forget","verification_method":"email"}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/subjects/user-1/rights", `{"kind":"access"}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/subjects/user-1/rights",
		`{"kind":"erasure","verification_method":"email","params":{"models":["invoice"]}}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/rights/not-a-uuid", "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/rights/"+domain.NewRightsRequestID().String(), "").Code)
}
