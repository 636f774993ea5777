package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"privata/internal/restriction/models"
	"privata/internal/restriction/store"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/audit"
	auditmocks "privata/pkg/platform/audit/mocks"
	"privata/pkg/requestcontext"
)

// ServiceSuite covers restriction lifecycle and its audit coupling.
// Justification: a restriction must never be stored without its audit event.
type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	auditor *auditmocks.MockEmitter
	store   *store.InMemoryStore
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.auditor = auditmocks.NewMockEmitter(ctrl)
	s.store = store.New()
	s.service = New(s.store, s.auditor, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
}

func (s *ServiceSuite) restrictAll(subject domain.SubjectID) *models.Restriction {
	s.auditor.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		s.Equal(audit.ActionRestrictionApplied, e.Action)
		s.Equal(subject.String(), e.SubjectID)
		return nil
	})
	r, err := s.service.Restrict(s.ctx, RestrictInput{
		SubjectID:  subject,
		Scope:      models.ScopeAllPersonalData,
		Exceptions: []string{"vital_interests"},
	})
	s.Require().NoError(err)
	return r
}

func (s *ServiceSuite) TestRestrictThenActive() {
	r := s.restrictAll("s1")
	s.True(r.Active)
	s.Empty(r.DataCategories)

	active, err := s.service.Active(s.ctx, "s1")
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(r.ID, active[0].ID)
}

func (s *ServiceSuite) TestRestrictValidation() {
	_, err := s.service.Restrict(s.ctx, RestrictInput{SubjectID: "s1", Scope: "everything"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Restrict(s.ctx, RestrictInput{SubjectID: "s1", Scope: models.ScopeSpecificCategories})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Restrict(s.ctx, RestrictInput{SubjectID: "s1", Scope: models.ScopeAllPersonalData, Exceptions: []string{"because"}})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestRestrictRolledBackWhenAuditFails() {
	s.auditor.EXPECT().Log(gomock.Any(), gomock.Any()).Return(errors.New("down"))

	_, err := s.service.Restrict(s.ctx, RestrictInput{SubjectID: "s1", Scope: models.ScopeAllPersonalData})
	s.True(dErrors.HasCode(err, dErrors.CodeAuditWriteFailed))

	all, err := s.service.List(s.ctx, "s1")
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *ServiceSuite) TestLift() {
	r := s.restrictAll("s1")
	s.auditor.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		s.Equal(audit.ActionRestrictionLifted, e.Action)
		return nil
	})

	lifted, err := s.service.Lift(s.ctx, "s1", r.ID)
	s.Require().NoError(err)
	s.False(lifted.Active)
	s.NotNil(lifted.LiftedAt)

	active, err := s.service.Active(s.ctx, "s1")
	s.Require().NoError(err)
	s.Empty(active)

	_, err = s.service.Lift(s.ctx, "s1", r.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestLiftOtherSubjectsRestrictionIsNotFound() {
	r := s.restrictAll("s1")

	_, err := s.service.Lift(s.ctx, "s2", r.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Lift(s.ctx, "s1", domain.NewRestrictionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
