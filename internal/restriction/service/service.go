package service

import (
	"context"
	"errors"
	"log/slog"

	"privata/internal/restriction/models"
	"privata/internal/restriction/store"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/audit"
	"privata/pkg/platform/sentinel"
	"privata/pkg/platform/validation"
	"privata/pkg/requestcontext"
)

const entityType = "restriction"

// RestrictInput describes a new processing restriction.
type RestrictInput struct {
	SubjectID      domain.SubjectID `validate:"required,max=128"`
	Scope          models.Scope     `validate:"required,oneof=all_personal_data specific_categories"`
	DataCategories []string         `validate:"max=200,dive,required,max=100"`
	Exceptions     []string         `validate:"max=6,dive,oneof=consent contract legal_obligation vital_interests public_task legitimate_interests"`
	Reason         string           `validate:"max=500"`
}

type Option func(*Service)

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service applies and lifts processing restrictions.
type Service struct {
	store   store.TxStore
	auditor audit.Emitter
	logger  *slog.Logger
}

// New constructs the restriction service.
func New(st store.TxStore, auditor audit.Emitter, opts ...Option) *Service {
	if st == nil {
		panic("restriction store is required")
	}
	if auditor == nil {
		panic("audit emitter is required")
	}
	s := &Service{store: st, auditor: auditor, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restrict records an active restriction and emits RESTRICTION_APPLIED in
// the same transaction.
func (s *Service) Restrict(ctx context.Context, in RestrictInput) (*models.Restriction, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Scope == models.ScopeSpecificCategories && len(in.DataCategories) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "data categories are required for a specific-categories restriction")
	}
	r := &models.Restriction{
		ID:         domain.NewRestrictionID(),
		SubjectID:  in.SubjectID,
		Scope:      in.Scope,
		Exceptions: in.Exceptions,
		Reason:     in.Reason,
		Active:     true,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if in.Scope == models.ScopeSpecificCategories {
		r.DataCategories = in.DataCategories
	}

	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		if err := tx.Insert(ctx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save restriction")
		}
		return s.emit(ctx, audit.ActionRestrictionApplied, r)
	})
	if err != nil {
		return nil, translate(err, "failed to apply restriction")
	}
	s.logger.InfoContext(ctx, "restriction applied",
		"subject_id", r.SubjectID,
		"restriction_id", r.ID,
		"scope", r.Scope,
	)
	return r, nil
}

// Lift deactivates one of the subject's restrictions. Lifting an inactive
// restriction is a conflict; an id owned by another subject is not found.
func (s *Service) Lift(ctx context.Context, subjectID domain.SubjectID, id domain.RestrictionID) (*models.Restriction, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "restriction ID is required")
	}
	now := requestcontext.Now(ctx)

	var lifted *models.Restriction
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		r, err := tx.Get(ctx, id)
		if err == nil && r.SubjectID != subjectID {
			err = sentinel.ErrNotFound
		}
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "restriction not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read restriction")
		}
		if !r.Active {
			return dErrors.New(dErrors.CodeConflict, "restriction already lifted")
		}
		r.Active = false
		r.LiftedAt = &now
		if err := tx.Update(ctx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lift restriction")
		}
		if err := s.emit(ctx, audit.ActionRestrictionLifted, r); err != nil {
			return err
		}
		lifted = r
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to lift restriction")
	}
	s.logger.InfoContext(ctx, "restriction lifted", "subject_id", lifted.SubjectID, "restriction_id", id)
	return lifted, nil
}

// Active returns the subject's active restrictions.
func (s *Service) Active(ctx context.Context, subjectID domain.SubjectID) ([]*models.Restriction, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject ID is required")
	}
	rs, err := s.store.ActiveBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read restrictions")
	}
	return rs, nil
}

// List returns every restriction the subject has held, newest first.
func (s *Service) List(ctx context.Context, subjectID domain.SubjectID) ([]*models.Restriction, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject ID is required")
	}
	rs, err := s.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list restrictions")
	}
	return rs, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, r *models.Restriction) error {
	err := s.auditor.Log(ctx, audit.Event{
		Action:     action,
		EntityType: entityType,
		EntityID:   r.ID.String(),
		SubjectID:  r.SubjectID.String(),
		Details: map[string]any{
			"scope":           string(r.Scope),
			"data_categories": r.DataCategories,
			"exceptions":      r.Exceptions,
			"reason":          r.Reason,
		},
	})
	if err != nil {
		return dErrors.Force(err, dErrors.CodeAuditWriteFailed, "failed to record restriction audit event")
	}
	return nil
}

func translate(err error, msg string) error {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
