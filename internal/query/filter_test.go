package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"privata/internal/access"
	"privata/internal/gate"
	"privata/internal/schema"
	"privata/internal/storage"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
)

type stubRunner struct {
	op       access.Operation
	query    storage.Query
	calls    int
	records  []storage.Record
	decision *gate.Decision
	err      error
}

func (r *stubRunner) FindMany(_ context.Context, op access.Operation, q storage.Query) ([]storage.Record, *gate.Decision, error) {
	r.calls++
	r.op = op
	r.query = q
	return r.records, r.decision, r.err
}

// FilterSuite checks what Execute hands to the engine and how it reports
// the decision.
// Justification: the builder to operation mapping and scoring of denied
// queries are not covered by the engine tests.
type FilterSuite struct {
	suite.Suite
	runner *stubRunner
	filter *Filter
}

func TestFilterSuite(t *testing.T) {
	suite.Run(t, new(FilterSuite))
}

func (s *FilterSuite) SetupTest() {
	s.runner = &stubRunner{}
	s.filter = NewFilter(s.runner, nil)
}

func (s *FilterSuite) TestExecuteMapsBuilderOntoOperation() {
	s.runner.decision = &gate.Decision{
		Outcome: gate.OutcomePartiallyAllowed,
		Mode:    gate.ModeStrict,
		Classes: map[string]schema.Class{"name": schema.ClassPII, "status": schema.ClassMetadata},
	}
	s.runner.records = []storage.Record{{"id": "1", "status": "active"}}

	b := From("patient").
		Select("name", "status").
		Where("status", storage.OpEq, "active").
		OrderBy("status", false).
		Limit(20).
		Purpose("analytics").
		LegalBasis(gate.BasisContract)
	res, err := s.filter.Execute(context.Background(), b, Subject{ID: "user-123"})
	s.Require().NoError(err)

	s.Equal(domain.SubjectID("user-123"), s.runner.op.SubjectID)
	s.Equal("patient", s.runner.op.Model)
	s.Equal("analytics", s.runner.op.Purpose)
	s.Equal(gate.BasisContract, s.runner.op.LegalBasis)
	s.False(s.runner.op.RequireConsent)
	s.Equal(b.Query(), s.runner.query)

	s.Len(res.Records, 1)
	s.Equal(100, res.Score)
}

func (s *FilterSuite) TestDeniedQueryStillReportsDecisionAndScore() {
	denied := &gate.Decision{
		Outcome: gate.OutcomeDenied,
		Mode:    gate.ModeStrict,
		Classes: map[string]schema.Class{"diagnosis": schema.ClassPHI},
	}
	s.runner.decision = denied
	s.runner.err = denied.Err()

	res, err := s.filter.Execute(context.Background(),
		From("patient").Where("diagnosis", storage.OpEq, "flu").RequireConsent(), Subject{ID: "user-123"})
	s.True(dErrors.HasCode(err, dErrors.CodeComplianceDenied))
	s.True(s.runner.op.RequireConsent)
	s.Same(denied, res.Decision)
	s.Equal(100, res.Score)
	s.Nil(res.Records)
}

func (s *FilterSuite) TestEmptyResultIsNotNil() {
	s.runner.decision = &gate.Decision{Outcome: gate.OutcomeAllowed, Mode: gate.ModeRelaxed}
	res, err := s.filter.Execute(context.Background(), From("patient"), Subject{ID: "user-123"})
	s.Require().NoError(err)
	s.NotNil(res.Records)
	s.Empty(res.Records)
}

func (s *FilterSuite) TestInvalidBuilderNeverReachesEngine() {
	_, err := s.filter.Execute(context.Background(), From("patient").Limit(-5), Subject{ID: "user-123"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.Zero(s.runner.calls)
}
