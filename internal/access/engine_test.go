package access

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	cacheredis "privata/internal/cache/redis"
	consentservice "privata/internal/consent/service"
	consentstore "privata/internal/consent/store"
	"privata/internal/gate"
	"privata/internal/gate/adapters"
	"privata/internal/platform/privacy"
	regionservice "privata/internal/region/service"
	regionstore "privata/internal/region/store"
	restrictionservice "privata/internal/restriction/service"
	restrictionstore "privata/internal/restriction/store"
	"privata/internal/schema"
	"privata/internal/storage"
	"privata/internal/storage/memory"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/audit"
	auditmocks "privata/pkg/platform/audit/mocks"
	"privata/pkg/platform/audit/publishers/compliance"
	auditmemory "privata/pkg/platform/audit/store/memory"
	"privata/pkg/platform/circuit"
)

const (
	subject = domain.SubjectID("user-123")
	other   = domain.SubjectID("user-456")
	patient = "patient"
	purpose = "care_coordination"
)

// EngineSuite wires the engine to the real gate, region router, consent and
// restriction services over in-memory stores.
// Justification: the engine is the composition point; its guarantees
// (projection, ownership, audit atomicity, region pinning) only show up with
// the real collaborators.
type EngineSuite struct {
	suite.Suite
	ctx          context.Context
	logger       *slog.Logger
	schemas      *schema.Registry
	audit        *auditmemory.Store
	consent      *consentservice.Service
	restrictions *restrictionservice.Service
	router       *regionservice.Router
	gate         *gate.Gate
	eu           *memory.Adapter
	us           *memory.Adapter
	adapters     *storage.Registry
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.schemas = schema.NewRegistry()
	s.Require().NoError(s.schemas.Register(schema.ModelSchema{
		Name: patient,
		Fields: map[string]schema.Class{
			"name":      schema.ClassPII,
			"email":     schema.ClassPII,
			"diagnosis": schema.ClassPHI,
			"status":    schema.ClassMetadata,
			"country":   schema.ClassMetadata,
		},
	}))
	s.audit = auditmemory.New()
	auditor := compliance.New(s.audit)

	s.consent = consentservice.New(consentstore.New(), auditor, consentservice.WithLogger(s.logger))
	s.restrictions = restrictionservice.New(restrictionstore.New(), auditor, restrictionservice.WithLogger(s.logger))
	s.router = regionservice.New(regionstore.New(), regionservice.WithLogger(s.logger))
	s.gate = gate.New(s.schemas, adapters.NewConsentAdapter(s.consent), s.restrictions, auditor,
		gate.WithMode(gate.ModeStrict),
		gate.WithLogger(s.logger),
	)

	s.eu = memory.New()
	s.us = memory.New()
	s.adapters = storage.NewRegistry()
	s.adapters.Register(domain.RegionEU, s.eu)
	s.adapters.Register(domain.RegionUS, s.us)
}

func (s *EngineSuite) engine(opts ...Option) *Engine {
	return s.engineWithAuditor(compliance.New(s.audit), opts...)
}

func (s *EngineSuite) engineWithAuditor(auditor audit.Emitter, opts ...Option) *Engine {
	opts = append([]Option{WithLogger(s.logger)}, opts...)
	return New(s.schemas, s.router, s.gate, s.adapters, auditor, opts...)
}

func (s *EngineSuite) grant(subjectID domain.SubjectID) {
	_, err := s.consent.Grant(s.ctx, subjectID, purpose, nil, 0)
	s.Require().NoError(err)
}

func (s *EngineSuite) op(subjectID domain.SubjectID, data storage.Record) Operation {
	return Operation{Model: patient, SubjectID: subjectID, Purpose: purpose, Data: data}
}

func (s *EngineSuite) create(e *Engine, subjectID domain.SubjectID, data storage.Record) storage.Record {
	rec, _, err := e.Create(s.ctx, s.op(subjectID, data))
	s.Require().NoError(err)
	return rec
}

func (s *EngineSuite) events(subjectID domain.SubjectID, action audit.Action) []audit.Event {
	events, _, err := s.audit.Scan(s.ctx, audit.Filter{SubjectID: subjectID.String(), Action: action}, audit.Page{})
	s.Require().NoError(err)
	return events
}

func (s *EngineSuite) TestCreatePinsRegionAndReadsOwnWrite() {
	e := s.engine()
	s.grant(subject)

	created := s.create(e, subject, storage.Record{"name": "Ana", "email": "ana@example.com", "country": "DE"})
	s.Equal(subject.String(), created["subject_id"])

	region, found, err := s.router.Lookup(s.ctx, subject)
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(domain.RegionEU, region)

	// The record lives only in the EU store.
	_, err = s.us.FindByID(s.ctx, patient, created.ID(), storage.Options{})
	s.Error(err)

	rec, decision, err := e.FindByID(s.ctx, Operation{Model: patient, SubjectID: subject, Purpose: purpose}, created.ID())
	s.Require().NoError(err)
	s.Equal(gate.OutcomeAllowed, decision.Outcome)
	s.Equal("Ana", rec["name"])
	s.Equal("ana@example.com", rec["email"])

	creates := s.events(subject, audit.ActionCreate)
	s.Require().Len(creates, 1)
	s.Equal("EU", creates[0].Region)
	s.Equal(patient, creates[0].EntityType)
	s.Equal(created.ID(), creates[0].EntityID)
}

func (s *EngineSuite) TestStrictFindManyWithoutConsentReturnsOnlyMetadata() {
	e := s.engine()
	s.grant(subject)
	s.create(e, subject, storage.Record{"name": "Ana", "status": "active", "country": "DE"})
	s.create(e, subject, storage.Record{"name": "Ben", "status": "inactive", "country": "DE"})
	s.create(e, other, storage.Record{"name": "Eve", "status": "active", "country": "DE"})
	s.Require().NoError(s.consent.Withdraw(s.ctx, subject, purpose))

	recs, decision, err := e.FindMany(s.ctx, Operation{Model: patient, SubjectID: subject, Purpose: purpose},
		storage.Query{Select: []string{"name", "status"}, Where: storage.Eq("status", "active")})
	s.Require().NoError(err)
	s.Equal(gate.OutcomePartiallyAllowed, decision.Outcome)
	s.Equal([]string{"name"}, decision.DeniedFields)
	s.Require().Len(recs, 1)
	s.Equal("active", recs[0]["status"])
	s.NotContains(recs[0], "name")
	s.NotContains(recs[0], "subject_id")
}

func (s *EngineSuite) TestDeniedFilterFieldDeniesQuery() {
	e := s.engine()
	s.grant(subject)
	s.create(e, subject, storage.Record{"email": "ana@example.com", "country": "DE"})
	s.Require().NoError(s.consent.Withdraw(s.ctx, subject, purpose))

	recs, decision, err := e.FindMany(s.ctx, Operation{Model: patient, SubjectID: subject, Purpose: purpose},
		storage.Query{Select: []string{"status"}, Where: storage.Eq("email", "ana@example.com")})
	s.True(dErrors.HasCode(err, dErrors.CodeComplianceDenied))
	s.Nil(recs)
	s.Require().NotNil(decision)
	s.Equal(gate.OutcomeDenied, decision.Outcome)
}

func (s *EngineSuite) TestCreateDropsDeniedFields() {
	e := s.engine()
	// No consent: the PII field is stripped, metadata is written.
	created, decision, err := e.Create(s.ctx, s.op(subject, storage.Record{"name": "Ana", "status": "new", "country": "US"}))
	s.Require().NoError(err)
	s.Equal(gate.OutcomePartiallyAllowed, decision.Outcome)
	s.NotContains(created, "name")

	stored, err := s.us.FindByID(s.ctx, patient, created.ID(), storage.Options{})
	s.Require().NoError(err)
	s.NotContains(stored, "name")
	s.Equal("new", stored["status"])

	creates := s.events(subject, audit.ActionCreate)
	s.Require().Len(creates, 1)
	s.Equal([]string{"name"}, creates[0].Details["dropped_fields"])
}

func (s *EngineSuite) TestPayloadForAnotherSubjectIsRejected() {
	e := s.engine()
	_, _, err := e.Create(s.ctx, s.op(subject, storage.Record{"subject_id": other.String(), "status": "x", "country": "US"}))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *EngineSuite) TestUnknownModelAndMissingSubject() {
	e := s.engine()
	_, _, err := e.FindByID(s.ctx, Operation{Model: "invoice", SubjectID: subject}, "1")
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownModel))

	_, _, err = e.FindByID(s.ctx, Operation{Model: patient}, "1")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *EngineSuite) TestReadWithoutRegionSignalFailsClosed() {
	e := s.engine()
	_, _, err := e.FindByID(s.ctx, Operation{Model: patient, SubjectID: "stranger"}, "1")
	s.True(dErrors.HasCode(err, dErrors.CodeRegionUndetermined))
}

func (s *EngineSuite) TestOtherSubjectsRecordIsNotFound() {
	e := s.engine()
	s.grant(subject)
	s.grant(other)
	theirs := s.create(e, other, storage.Record{"name": "Eve", "country": "DE"})
	s.create(e, subject, storage.Record{"name": "Ana", "country": "DE"})

	_, _, err := e.FindByID(s.ctx, Operation{Model: patient, SubjectID: subject, Purpose: purpose}, theirs.ID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, _, err = e.Update(s.ctx, s.op(subject, storage.Record{"name": "Mallory"}), theirs.ID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	stored, err := s.eu.FindByID(s.ctx, patient, theirs.ID(), storage.Options{})
	s.Require().NoError(err)
	s.Equal("Eve", stored["name"])
}

func (s *EngineSuite) TestUpdateReturnsWrittenFields() {
	e := s.engine()
	s.grant(subject)
	created := s.create(e, subject, storage.Record{"name": "Ana", "status": "new", "country": "DE"})

	updated, _, err := e.Update(s.ctx, s.op(subject, storage.Record{"status": "active", "id": "ignored"}), created.ID())
	s.Require().NoError(err)
	s.Equal(storage.Record{"id": created.ID(), "status": "active"}, updated)

	rec, _, err := e.FindByID(s.ctx, Operation{Model: patient, SubjectID: subject, Purpose: purpose}, created.ID())
	s.Require().NoError(err)
	s.Equal("active", rec["status"])
	s.Equal("Ana", rec["name"])
	s.Len(s.events(subject, audit.ActionUpdate), 1)
}

func (s *EngineSuite) TestSoftDeleteHidesRecord() {
	e := s.engine()
	s.grant(subject)
	created := s.create(e, subject, storage.Record{"name": "Ana", "country": "DE"})

	s.Require().NoError(e.SoftDelete(s.ctx, Operation{Model: patient, SubjectID: subject, Purpose: purpose}, created.ID()))

	_, _, err := e.FindByID(s.ctx, Operation{Model: patient, SubjectID: subject, Purpose: purpose}, created.ID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	recs, _, err := e.FindMany(s.ctx, Operation{Model: patient, SubjectID: subject, Purpose: purpose}, storage.Query{})
	s.Require().NoError(err)
	s.Empty(recs)

	stored, err := s.eu.FindByID(s.ctx, patient, created.ID(), storage.Options{})
	s.Require().NoError(err)
	s.True(stored.IsDeleted())
	s.Len(s.events(subject, audit.ActionDelete), 1)

	err = e.SoftDelete(s.ctx, Operation{Model: patient, SubjectID: subject, Purpose: purpose}, created.ID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EngineSuite) TestAuditFailureRollsBackWrite() {
	s.grant(subject)
	s.create(s.engine(), subject, storage.Record{"name": "Ana", "country": "DE"})

	ctrl := gomock.NewController(s.T())
	failing := auditmocks.NewMockEmitter(ctrl)
	failing.EXPECT().Log(gomock.Any(), gomock.Any()).Return(errors.New("audit store down"))
	e := s.engineWithAuditor(failing)

	_, _, err := e.Create(s.ctx, s.op(subject, storage.Record{"name": "Ben"}))
	s.True(dErrors.HasCode(err, dErrors.CodeAuditWriteFailed))

	recs, err := s.eu.FindMany(s.ctx, storage.Query{Model: patient}, storage.Options{})
	s.Require().NoError(err)
	s.Len(recs, 1)
}

func (s *EngineSuite) TestCancellationMidTransactionRollsBack() {
	s.grant(subject)
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	e := s.engineWithAuditor(&cancellingEmitter{inner: compliance.New(s.audit), cancel: cancel})

	_, _, err := e.Create(ctx, s.op(subject, storage.Record{"name": "Ana", "country": "DE"}))
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout), "got %v", err)

	recs, err := s.eu.FindMany(s.ctx, storage.Query{Model: patient}, storage.Options{})
	s.Require().NoError(err)
	s.Empty(recs)
}

func (s *EngineSuite) TestExpiredContextTimesOut() {
	e := s.engine()
	ctx, cancel := context.WithTimeout(s.ctx, time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, _, err := e.Create(ctx, s.op(subject, storage.Record{"name": "Ana", "country": "DE"}))
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	s.Zero(s.audit.Len())
}

func (s *EngineSuite) TestSubjectRecordsAndRectify() {
	e := s.engine()
	s.grant(subject)
	created := s.create(e, subject, storage.Record{"name": "Ana", "email": "old@example.com", "country": "DE"})
	s.create(e, other, storage.Record{"name": "Eve", "country": "DE"})

	recs, err := e.SubjectRecords(s.ctx, subject, patient)
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal("Ana", recs[0]["name"])
	s.Len(s.events(subject, audit.ActionRead), 1)

	fixed, err := e.Rectify(s.ctx, subject, patient, created.ID(), storage.Record{"email": "new@example.com"})
	s.Require().NoError(err)
	s.Equal(storage.Record{"id": created.ID(), "email": "new@example.com"}, fixed)
	s.Len(s.events(subject, audit.ActionRectification), 1)

	_, err = e.Rectify(s.ctx, subject, patient, created.ID(), storage.Record{"subject_id": "someone"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *EngineSuite) TestEraseSubjectPseudonymizesAndKeepsAudit() {
	p, err := privacy.NewPseudonymizer([]byte("erasure-test-key"))
	s.Require().NoError(err)
	e := s.engine(WithPseudonymizer(p))
	s.grant(subject)
	first := s.create(e, subject, storage.Record{"name": "Ana", "diagnosis": "flu", "status": "active", "country": "DE"})
	second := s.create(e, subject, storage.Record{"email": "ana@example.com", "country": "DE"})
	s.Require().NoError(e.SoftDelete(s.ctx, Operation{Model: patient, SubjectID: subject, Purpose: purpose}, second.ID()))
	before := len(s.events(subject, ""))

	erased, err := e.EraseSubject(s.ctx, subject, patient)
	s.Require().NoError(err)
	s.Equal(2, erased)

	stored, err := s.eu.FindByID(s.ctx, patient, first.ID(), storage.Options{})
	s.Require().NoError(err)
	s.Nil(stored["name"])
	s.Nil(stored["diagnosis"])
	s.Equal("active", stored["status"])
	s.True(privacy.IsPseudonym(stored["subject_id"].(string)))

	stored, err = s.eu.FindByID(s.ctx, patient, second.ID(), storage.Options{})
	s.Require().NoError(err)
	s.Nil(stored["email"])

	// Earlier events are untouched and one ERASURE event per record is added.
	s.Len(s.events(subject, audit.ActionErasure), 2)
	s.Len(s.events(subject, ""), before+2)

	again, err := e.EraseSubject(s.ctx, subject, patient)
	s.Require().NoError(err)
	s.Zero(again)
}

func (s *EngineSuite) TestEraseWithoutPseudonymizerFails() {
	_, err := s.engine().EraseSubject(s.ctx, subject, patient)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *EngineSuite) TestRedisCacheServesAndInvalidates() {
	srv := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })
	breaker := circuit.New("records-test", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))
	e := s.engine(WithCache(cacheredis.New(client), breaker, time.Minute))
	s.grant(subject)

	created := s.create(e, subject, storage.Record{"name": "Ana", "status": "new", "country": "DE"})
	key := "privata:record:EU:patient:" + created.ID()
	s.True(srv.Exists(key), "create fills the cache")

	_, _, err := e.Update(s.ctx, s.op(subject, storage.Record{"status": "active"}), created.ID())
	s.Require().NoError(err)
	s.False(srv.Exists(key), "update invalidates")

	rec, _, err := e.FindByID(s.ctx, Operation{Model: patient, SubjectID: subject, Purpose: purpose}, created.ID())
	s.Require().NoError(err)
	s.Equal("active", rec["status"])
	s.True(srv.Exists(key))

	// With the cache gone reads fall back to the store.
	srv.Close()
	rec, _, err = e.FindByID(s.ctx, Operation{Model: patient, SubjectID: subject, Purpose: purpose}, created.ID())
	s.Require().NoError(err)
	s.Equal("Ana", rec["name"])
	s.Equal(circuit.StateOpen, breaker.State())
}

type cancellingEmitter struct {
	inner  audit.Emitter
	cancel context.CancelFunc
}

func (c *cancellingEmitter) Log(ctx context.Context, event audit.Event) error {
	if event.Action == audit.ActionAccessDecision {
		return c.inner.Log(ctx, event)
	}
	c.cancel()
	return c.inner.Log(context.WithoutCancel(ctx), event)
}

func TestAllowedOfKeepsOrderAndDedupes(t *testing.T) {
	d := &gate.Decision{AllowedFields: []string{"email", "status"}}
	assert.Equal(t, []string{"status", "email"}, allowedOf([]string{"status", "name", "email", "status"}, d))

	out := allowedOf([]string{"name"}, d)
	require.NotNil(t, out)
	assert.Empty(t, out)
}
