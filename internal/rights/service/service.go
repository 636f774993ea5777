package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"privata/internal/rights/metrics"
	"privata/internal/rights/models"
	"privata/internal/rights/store"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/audit"
	"privata/pkg/platform/sentinel"
	platformsync "privata/pkg/platform/sync"
	"privata/pkg/platform/validation"
	"privata/pkg/requestcontext"
)

const (
	entityType         = "rights_request"
	defaultDownloadTTL = 24 * time.Hour
)

// SubmitInput is a new rights request as received from the subject.
type SubmitInput struct {
	SubjectID          domain.SubjectID `validate:"required,max=128"`
	Kind               models.Kind      `validate:"required,oneof=access erasure rectification restriction portability objection"`
	VerificationMethod string           `validate:"required,max=64"`
	Params             models.Params
}

type Option func(*Service)

// Service runs data subject rights requests as resumable step workflows.
type Service struct {
	store      store.Store
	data       DataAccess
	consent    Consent
	restrictor Restrictor
	auditor    audit.Emitter

	verifier    Verifier
	tokens      Tokens
	queue       Enqueuer
	retry       RetryPolicy
	downloadTTL time.Duration
	locks       *platformsync.KeyedMutex
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New constructs the rights service. store, data, consent, restrictor and
// auditor are required.
func New(st store.Store, data DataAccess, consent Consent, restrictor Restrictor, auditor audit.Emitter, opts ...Option) *Service {
	if st == nil {
		panic("rights store is required")
	}
	if data == nil {
		panic("data access is required")
	}
	if consent == nil {
		panic("consent service is required")
	}
	if restrictor == nil {
		panic("restriction service is required")
	}
	if auditor == nil {
		panic("audit emitter is required")
	}
	s := &Service{
		store:       st,
		data:        data,
		consent:     consent,
		restrictor:  restrictor,
		auditor:     auditor,
		verifier:    NewMethodVerifier(DefaultVerificationMethods...),
		retry:       DefaultRetryPolicy,
		downloadTTL: defaultDownloadTTL,
		locks:       platformsync.NewKeyedMutex(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func WithVerifier(v Verifier) Option {
	return func(s *Service) {
		if v != nil {
			s.verifier = v
		}
	}
}

// WithTokens enables portability packages.
func WithTokens(t Tokens, ttl time.Duration) Option {
	return func(s *Service) {
		s.tokens = t
		if ttl > 0 {
			s.downloadTTL = ttl
		}
	}
}

// WithQueue makes Submit schedule asynchronous execution.
func WithQueue(q Enqueuer) Option {
	return func(s *Service) {
		s.queue = q
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) {
		if p.Attempts > 0 {
			s.retry = p
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Submit validates and records a request, emits RIGHTS_REQUESTED and, when a
// queue is configured, schedules it.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Request, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	steps, err := s.plan(in)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	req := &models.Request{
		ID:                 domain.NewRightsRequestID(),
		SubjectID:          in.SubjectID,
		Kind:               in.Kind,
		Status:             models.StatusPending,
		VerificationMethod: in.VerificationMethod,
		Params:             in.Params,
		Steps:              steps,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save rights request")
	}
	if err := s.emit(ctx, audit.ActionRightsRequested, req, map[string]any{
		"kind":                string(req.Kind),
		"verification_method": req.VerificationMethod,
		"steps":               stepNames(req.Steps),
	}); err != nil {
		req.Status = models.StatusFailed
		req.ResultOrInit().Error = err.Error()
		s.save(ctx, req)
		return nil, err
	}
	s.metrics.IncrementSubmitted(string(req.Kind))
	s.logger.InfoContext(ctx, "rights request submitted",
		"request_id", req.ID,
		"subject_id", req.SubjectID,
		"kind", req.Kind,
	)

	if s.queue != nil {
		if err := s.queue.EnqueueExecute(ctx, req.ID); err != nil {
			// The request stays pending and can be executed on demand.
			s.logger.ErrorContext(ctx, "failed to enqueue rights request",
				"request_id", req.ID,
				"error", err,
			)
		}
	}
	return req, nil
}

// Execute verifies the request and runs its pending steps in order. Completed
// steps are skipped, so calling Execute again resumes a partially completed
// or failed request. Executions of one request are serialized.
func (s *Service) Execute(ctx context.Context, id domain.RightsRequestID) (*models.Request, error) {
	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status == models.StatusCompleted {
		return req, nil
	}
	start := time.Now()
	defer s.metrics.ObserveExecute(string(req.Kind), start)

	req.Status = models.StatusVerifying
	if err := s.save(ctx, req); err != nil {
		return nil, err
	}
	if err := s.verifier.Verify(ctx, req); err != nil {
		return req, s.finish(ctx, req, err)
	}

	req.Status = models.StatusExecuting
	if err := s.save(ctx, req); err != nil {
		return nil, err
	}
	for i := range req.Steps {
		if req.Steps[i].Status == models.StepCompleted {
			continue
		}
		if err := s.runStep(ctx, req, i); err != nil {
			return req, s.finish(ctx, req, dErrors.Force(err, dErrors.CodeRightsStepFailed,
				fmt.Sprintf("step %s failed", req.Steps[i].Name)))
		}
	}
	return req, s.finish(ctx, req, nil)
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, id domain.RightsRequestID) (*models.Request, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "rights request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read rights request")
	}
	return req, nil
}

// ListBySubject returns the subject's requests, newest first.
func (s *Service) ListBySubject(ctx context.Context, subjectID domain.SubjectID) ([]*models.Request, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject ID is required")
	}
	reqs, err := s.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rights requests")
	}
	return reqs, nil
}

// runStep performs step i with bounded retries for transient failures and
// records the outcome.
func (s *Service) runStep(ctx context.Context, req *models.Request, i int) error {
	step := &req.Steps[i]
	action, target := splitStep(step.Name)

	var err error
	for attempt := 1; ; attempt++ {
		step.Attempts++
		s.metrics.IncrementStepAttempt(action)
		err = s.perform(ctx, req, action, target)
		if err == nil || !transient(err) || attempt >= s.retry.Attempts {
			break
		}
		s.logger.WarnContext(ctx, "rights step failed, retrying",
			"request_id", req.ID,
			"step", step.Name,
			"attempt", attempt,
			"error", err,
		)
		if waitErr := s.retry.wait(ctx, attempt); waitErr != nil {
			err = errors.Join(err, waitErr)
			break
		}
	}

	now := requestcontext.Now(ctx)
	step.Timestamp = &now
	if err != nil {
		step.Status = models.StepFailed
		step.Error = err.Error()
	} else {
		step.Status = models.StepCompleted
		step.Error = ""
	}
	s.metrics.IncrementStep(action, string(step.Status))
	if saveErr := s.save(ctx, req); saveErr != nil {
		return errors.Join(err, saveErr)
	}

	details := map[string]any{
		"kind":     string(req.Kind),
		"step":     step.Name,
		"status":   string(step.Status),
		"attempts": step.Attempts,
	}
	if err != nil {
		details["error"] = step.Error
	}
	if emitErr := s.emit(ctx, audit.ActionRightsStep, req, details); emitErr != nil {
		return errors.Join(err, emitErr)
	}
	return err
}

// finish moves the request to its terminal status and emits
// RIGHTS_COMPLETED. It returns cause.
func (s *Service) finish(ctx context.Context, req *models.Request, cause error) error {
	ctx = context.WithoutCancel(ctx)
	result := req.ResultOrInit()
	switch {
	case cause == nil:
		req.Status = models.StatusCompleted
		result.Error = ""
	case req.Completed() > 0:
		req.Status = models.StatusPartiallyCompleted
		result.Error = cause.Error()
	default:
		req.Status = models.StatusFailed
		result.Error = cause.Error()
	}
	if err := s.save(ctx, req); err != nil {
		return errors.Join(cause, err)
	}
	s.metrics.IncrementFinished(string(req.Kind), string(req.Status))

	details := map[string]any{
		"kind":            string(req.Kind),
		"status":          string(req.Status),
		"steps_completed": req.Completed(),
		"steps_total":     len(req.Steps),
	}
	if cause != nil {
		details["error"] = cause.Error()
	}
	if err := s.emit(ctx, audit.ActionRightsCompleted, req, details); err != nil {
		return errors.Join(cause, err)
	}
	log := s.logger.InfoContext
	if cause != nil {
		log = s.logger.WarnContext
	}
	log(ctx, "rights request finished",
		"request_id", req.ID,
		"kind", req.Kind,
		"status", req.Status,
	)
	return cause
}

func (s *Service) save(ctx context.Context, req *models.Request) error {
	req.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(context.WithoutCancel(ctx), req); err != nil {
		s.logger.ErrorContext(ctx, "failed to save rights request",
			"request_id", req.ID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save rights request")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, req *models.Request, details map[string]any) error {
	err := s.auditor.Log(ctx, audit.Event{
		Action:     action,
		EntityType: entityType,
		EntityID:   req.ID.String(),
		SubjectID:  req.SubjectID.String(),
		Details:    details,
	})
	if err != nil {
		return dErrors.Force(err, dErrors.CodeAuditWriteFailed, "failed to record rights audit event")
	}
	return nil
}

func stepNames(steps []models.Step) []string {
	out := make([]string, 0, len(steps))
	for _, st := range steps {
		out = append(out, st.Name)
	}
	return out
}

// scope returns the models a request covers.
func (s *Service) scope(requested []string) ([]string, error) {
	registered := s.data.Models()
	if len(requested) == 0 {
		return registered, nil
	}
	for _, m := range requested {
		if !slices.Contains(registered, m) {
			return nil, dErrors.New(dErrors.CodeUnknownModel, "model "+m+" is not registered")
		}
	}
	return requested, nil
}
