package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"privata/internal/consent/metrics"
	"privata/internal/consent/models"
	"privata/internal/consent/store"
	"privata/internal/storage"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/audit"
	"privata/pkg/platform/sentinel"
	"privata/pkg/requestcontext"
)

const (
	defaultConsentTTL = 365 * 24 * time.Hour

	entityType = "consent"

	reasonNoConsent = "no_consent"
	reasonNotActive = "not_active"

	detailPurpose     = "purpose"
	detailReason      = "reason"
	detailExpiresAt   = "expires_at"
	detailWithdrawAll = "withdraw_all"
)

type Option func(*Service)

// Service is the consent ledger. Every mutation and its audit event commit
// together; a failed audit write rolls the mutation back.
type Service struct {
	store      store.TxStore
	auditor    audit.Emitter
	metrics    *metrics.Metrics
	logger     *slog.Logger
	consentTTL time.Duration
}

// New constructs the consent service. store and auditor are required.
func New(st store.TxStore, auditor audit.Emitter, opts ...Option) *Service {
	if st == nil {
		panic("consent store is required")
	}
	if auditor == nil {
		panic("audit emitter is required")
	}
	svc := &Service{
		store:      st,
		auditor:    auditor,
		logger:     slog.Default(),
		consentTTL: defaultConsentTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMetrics sets the metrics instance for the service
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConsentTTL configures the default lifetime of a grant. Zero or
// negative values keep the one year default.
func WithConsentTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.consentTTL = ttl
		}
	}
}

// ConsentTTL returns the lifetime applied when Grant is called without one.
func (s *Service) ConsentTTL() time.Duration {
	return s.consentTTL
}

// Grant records consent for purpose. The latest record for the pair is
// renewed in place when one exists, otherwise a new record is inserted.
func (s *Service) Grant(ctx context.Context, subjectID domain.SubjectID, purpose models.Purpose, details map[string]any, ttl time.Duration) (*models.Record, error) {
	if err := validateKey(subjectID, purpose); err != nil {
		return nil, err
	}
	start := time.Now()
	defer s.metrics.ObserveConsentGrantLatency(start)

	if ttl <= 0 {
		ttl = s.consentTTL
	}
	now := requestcontext.Now(ctx)

	var granted *models.Record
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		existing, err := tx.Latest(ctx, subjectID, purpose, storage.ConsistencyStrong)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
		}

		record := &models.Record{
			ID:        domain.NewConsentID(),
			SubjectID: subjectID,
			Purpose:   purpose,
		}
		if existing != nil {
			record = existing
		}
		record.Granted = true
		record.GrantedAt = now
		record.ExpiresAt = now.Add(ttl)
		record.WithdrawnAt = nil
		record.Details = details

		if existing != nil {
			err = tx.Update(ctx, record)
		} else {
			err = tx.Insert(ctx, record)
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save consent")
		}

		if err := s.emit(ctx, audit.ActionConsentGranted, record, map[string]any{
			detailPurpose:   string(purpose),
			detailExpiresAt: record.ExpiresAt,
		}); err != nil {
			return err
		}
		granted = record
		return nil
	})
	if err != nil {
		return nil, s.translate(ctx, err, "failed to grant consent")
	}

	s.metrics.IncrementConsentsGranted(string(purpose))
	s.logger.InfoContext(ctx, "consent granted",
		"subject_id", subjectID,
		"purpose", purpose,
		"expires_at", granted.ExpiresAt,
	)
	return granted, nil
}

// CheckOption tunes a single Check call.
type CheckOption func(*checkOptions)

type checkOptions struct {
	consistency storage.Consistency
}

// WithConsistency selects the read consistency for the ledger lookup.
func WithConsistency(c storage.Consistency) CheckOption {
	return func(o *checkOptions) {
		o.consistency = c
	}
}

// Check reports whether the latest record for (subject, purpose) is active.
// Absence is not an error. An unreadable ledger fails closed with
// consent_check_failed.
func (s *Service) Check(ctx context.Context, subjectID domain.SubjectID, purpose models.Purpose, opts ...CheckOption) (bool, error) {
	if err := validateKey(subjectID, purpose); err != nil {
		return false, err
	}
	o := checkOptions{consistency: storage.ConsistencyEventual}
	for _, opt := range opts {
		opt(&o)
	}
	if err := ctx.Err(); err != nil {
		s.metrics.IncrementConsentCheckErrors()
		return false, dErrors.Force(err, dErrors.CodeConsentCheckFailed, "consent check aborted")
	}

	record, err := s.store.Latest(ctx, subjectID, purpose, o.consistency)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementConsentCheck(string(purpose), false)
			return false, nil
		}
		s.metrics.IncrementConsentCheckErrors()
		s.logger.ErrorContext(ctx, "consent ledger read failed",
			"subject_id", subjectID,
			"purpose", purpose,
			"error", err,
		)
		return false, dErrors.Force(err, dErrors.CodeConsentCheckFailed, "failed to read consent ledger")
	}
	if record.GrantedAt.IsZero() || record.ExpiresAt.IsZero() {
		s.metrics.IncrementConsentCheckErrors()
		return false, dErrors.New(dErrors.CodeConsentCheckFailed, "consent record is malformed")
	}

	active := record.IsActive(requestcontext.Now(ctx))
	s.metrics.IncrementConsentCheck(string(purpose), active)
	return active, nil
}

// Withdraw marks the latest active record for (subject, purpose) withdrawn.
// When nothing is active exactly one withdrawal-attempted event is recorded
// and nil is returned.
func (s *Service) Withdraw(ctx context.Context, subjectID domain.SubjectID, purpose models.Purpose) error {
	if err := validateKey(subjectID, purpose); err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	withdrawn := false
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		record, err := tx.Latest(ctx, subjectID, purpose, storage.ConsistencyStrong)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return s.emitAttempt(ctx, subjectID, purpose, reasonNoConsent)
		case err != nil:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
		case !record.IsActive(now):
			return s.emitAttempt(ctx, subjectID, purpose, reasonNotActive)
		}

		record.WithdrawnAt = &now
		if err := tx.Update(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to withdraw consent")
		}
		if err := s.emit(ctx, audit.ActionConsentWithdrawn, record, map[string]any{
			detailPurpose: string(purpose),
		}); err != nil {
			return err
		}
		withdrawn = true
		return nil
	})
	if err != nil {
		return s.translate(ctx, err, "failed to withdraw consent")
	}

	if withdrawn {
		s.metrics.IncrementConsentsWithdrawn(string(purpose))
		s.logger.InfoContext(ctx, "consent withdrawn", "subject_id", subjectID, "purpose", purpose)
	}
	return nil
}

// WithdrawAll withdraws every active consent the subject holds and returns
// how many were withdrawn. Used by erasure and objection workflows.
func (s *Service) WithdrawAll(ctx context.Context, subjectID domain.SubjectID) (int, error) {
	if subjectID.IsNil() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "subject ID is required")
	}
	now := requestcontext.Now(ctx)

	var purposes []models.Purpose
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		purposes = purposes[:0]
		records, err := tx.ListBySubject(ctx, subjectID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consents")
		}
		for _, record := range records {
			if !record.IsActive(now) {
				continue
			}
			record.WithdrawnAt = &now
			if err := tx.Update(ctx, record); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to withdraw consent")
			}
			if err := s.emit(ctx, audit.ActionConsentWithdrawn, record, map[string]any{
				detailPurpose:     string(record.Purpose),
				detailWithdrawAll: true,
			}); err != nil {
				return err
			}
			purposes = append(purposes, record.Purpose)
		}
		return nil
	})
	if err != nil {
		return 0, s.translate(ctx, err, "failed to withdraw consents")
	}

	for _, p := range purposes {
		s.metrics.IncrementConsentsWithdrawn(string(p))
	}
	return len(purposes), nil
}

// History returns every record the subject holds, newest first.
func (s *Service) History(ctx context.Context, subjectID domain.SubjectID) ([]*models.Record, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject ID is required")
	}
	records, err := s.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consents")
	}
	return records, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, record *models.Record, details map[string]any) error {
	err := s.auditor.Log(ctx, audit.Event{
		Action:     action,
		EntityType: entityType,
		EntityID:   record.ID.String(),
		SubjectID:  record.SubjectID.String(),
		Details:    details,
	})
	if err != nil {
		return dErrors.Force(err, dErrors.CodeAuditWriteFailed, "failed to record consent audit event")
	}
	return nil
}

func (s *Service) emitAttempt(ctx context.Context, subjectID domain.SubjectID, purpose models.Purpose, reason string) error {
	err := s.auditor.Log(ctx, audit.Event{
		Action:     audit.ActionConsentWithdrawalAttempted,
		EntityType: entityType,
		SubjectID:  subjectID.String(),
		Details: map[string]any{
			detailPurpose: string(purpose),
			detailReason:  reason,
		},
	})
	if err != nil {
		return dErrors.Force(err, dErrors.CodeAuditWriteFailed, "failed to record consent audit event")
	}
	return nil
}

// translate maps a transaction failure onto the error taxonomy: coded
// errors pass through, cancellation becomes a timeout.
func (s *Service) translate(ctx context.Context, err error, msg string) error {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func validateKey(subjectID domain.SubjectID, purpose models.Purpose) error {
	if subjectID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "subject ID is required")
	}
	if purpose == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "purpose is required")
	}
	return nil
}
