// Package gate is the compliance policy decision point. Every operation on
// personal data is evaluated here before it reaches a store, and every
// completed evaluation leaves exactly one ACCESS_DECISION audit event.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"privata/internal/gate/metrics"
	"privata/internal/gate/ports"
	restrictionmodels "privata/internal/restriction/models"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/audit"
	"privata/pkg/platform/fieldset"
	"privata/pkg/platform/tracer"
)

// Gate evaluates requests against consent, restrictions and field classes.
type Gate struct {
	classifier   ports.Classifier
	consent      ports.ConsentLedger
	restrictions ports.RestrictionProvider
	auditor      audit.Emitter
	mode         Mode
	metrics      *metrics.Metrics
	logger       *slog.Logger
	tracer       tracer.Tracer
}

// Option configures the Gate.
type Option func(*Gate)

// WithMode sets the compliance mode. Default strict.
func WithMode(m Mode) Option {
	return func(g *Gate) {
		if m != "" {
			g.mode = m
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(g *Gate) {
		if t != nil {
			g.tracer = t
		}
	}
}

// New creates a gate. Every collaborator is required: a gate that cannot
// see consent, restrictions or the audit trail cannot decide anything.
func New(classifier ports.Classifier, consent ports.ConsentLedger, restrictions ports.RestrictionProvider, auditor audit.Emitter, opts ...Option) *Gate {
	if classifier == nil {
		panic("gate.New: classifier is required")
	}
	if consent == nil {
		panic("gate.New: consent ledger is required")
	}
	if restrictions == nil {
		panic("gate.New: restriction provider is required")
	}
	if auditor == nil {
		panic("gate.New: auditor is required")
	}
	g := &Gate{
		classifier:   classifier,
		consent:      consent,
		restrictions: restrictions,
		auditor:      auditor,
		mode:         ModeStrict,
		logger:       slog.Default(),
		tracer:       tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mode returns the configured compliance mode.
func (g *Gate) Mode() Mode {
	return g.mode
}

// EffectiveMode is the mode a request is evaluated under.
func (g *Gate) EffectiveMode(req Request) Mode {
	if g.mode == ModeRelaxed && req.RequireConsent {
		return ModeStrict
	}
	return g.mode
}

// Evaluate decides req. A denial is a decision, not an error: the returned
// error is reserved for evaluations that could not complete, and then no
// decision is returned.
func (g *Gate) Evaluate(ctx context.Context, req Request) (decision *Decision, err error) {
	start := time.Now()
	defer g.metrics.ObserveEvaluateLatency(start)

	mode := g.EffectiveMode(req)
	ctx, span := g.tracer.Start(ctx, tracer.SpanGateEvaluate,
		tracer.String(tracer.AttrModel, req.Model),
		tracer.String(tracer.AttrSubject, tracer.HashSubject(req.SubjectID.String())),
		tracer.String(tracer.AttrPurpose, req.Purpose),
		tracer.String(tracer.AttrMode, string(mode)),
	)
	defer func() {
		if err != nil {
			g.metrics.IncrementEvaluationError(string(dErrors.CodeOf(err)))
		} else {
			span.SetAttributes(
				tracer.String(tracer.AttrOutcome, string(decision.Outcome)),
				tracer.Int(tracer.AttrDenied, len(decision.DeniedFields)),
			)
		}
		span.End(err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "evaluation aborted")
	}

	// 1. classify
	classes, err := g.classifier.Classify(req.Model, fieldset.Union(req.Fields, req.Required))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to classify fields")
	}
	eval := newEvaluation(classes)

	// 2 and 3. consent for PII, and for PHI outside the HIPAA carve-outs
	if consentNeeded(classes, req.Purpose, mode) {
		consented, err := g.checkConsent(ctx, req, mode)
		if err != nil {
			return nil, err
		}
		if !consented && mode == ModeRelaxed {
			g.logger.WarnContext(ctx, "processing personal data without consent",
				"model", req.Model,
				"subject_id", req.SubjectID,
				"purpose", req.Purpose,
			)
		}
		eval.applyConsent(req.Purpose, mode, consented)
	}

	// 4. restrictions
	if !req.SubjectID.IsNil() {
		active, err := g.activeRestrictions(ctx, req)
		if err != nil {
			return nil, err
		}
		eval.applyRestrictions(active, req.LegalBasis)
	}
	eval.applyRequired(req.Required)

	// 5. decide
	decision = eval.decide(req, mode)

	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "evaluation aborted")
	}

	// 6. audit, regardless of outcome
	if err := g.emit(ctx, req, decision); err != nil {
		return nil, err
	}
	span.AddEvent(tracer.EventAuditEmitted)

	g.metrics.IncrementDecision(string(decision.Outcome), string(mode))
	for _, r := range decision.Reasons {
		if decision.Denies(r.Field) {
			g.metrics.IncrementDeniedField(string(r.Code))
		}
	}
	if decision.Outcome != OutcomeAllowed {
		g.logger.InfoContext(ctx, "compliance gate restricted access",
			"model", req.Model,
			"subject_id", req.SubjectID,
			"outcome", decision.Outcome,
			"denied_fields", decision.DeniedFields,
		)
	}
	return decision, nil
}

// checkConsent consults the ledger. Without a subject or purpose there is
// nothing consent could attach to, so the answer is no.
func (g *Gate) checkConsent(ctx context.Context, req Request, mode Mode) (bool, error) {
	if req.SubjectID.IsNil() || req.Purpose == "" {
		return false, nil
	}
	ok, err := g.consent.Check(ctx, req.SubjectID, req.Purpose, mode == ModeStrict)
	if err != nil {
		g.logger.ErrorContext(ctx, "consent check failed, denying evaluation",
			"subject_id", req.SubjectID,
			"purpose", req.Purpose,
			"error", err,
		)
		if ctxErr := ctx.Err(); ctxErr != nil && !dErrors.HasCode(err, dErrors.CodeConsentCheckFailed) {
			return false, dErrors.Wrap(err, dErrors.CodeTimeout, "consent check aborted")
		}
		return false, dErrors.Wrap(err, dErrors.CodeConsentCheckFailed, "consent check failed")
	}
	return ok, nil
}

func (g *Gate) activeRestrictions(ctx context.Context, req Request) ([]*restrictionmodels.Restriction, error) {
	active, err := g.restrictions.Active(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "restriction lookup aborted")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read restrictions")
	}
	return active, nil
}

func (g *Gate) emit(ctx context.Context, req Request, d *Decision) error {
	framework := audit.FrameworkGDPR
	if d.TouchesPHI() {
		framework = audit.FrameworkHIPAA
	}
	details := map[string]any{
		"model":          req.Model,
		"operation":      string(req.Operation),
		"outcome":        string(d.Outcome),
		"allowed_fields": d.AllowedFields,
		"denied_fields":  d.DeniedFields,
		"required":       req.Required,
		"purpose":        req.Purpose,
		"legal_basis":    string(req.LegalBasis),
		"mode":           string(d.Mode),
	}
	if len(d.Reasons) > 0 {
		reasons := make(map[string]string, len(d.Reasons))
		for _, r := range d.Reasons {
			reasons[r.Field] = string(r.Code)
		}
		details["reasons"] = reasons
	}
	err := g.auditor.Log(ctx, audit.Event{
		Action:     audit.ActionAccessDecision,
		EntityType: req.Model,
		EntityID:   req.EntityID,
		SubjectID:  req.SubjectID.String(),
		Region:     req.Region.String(),
		Framework:  framework,
		Details:    details,
	})
	if err != nil {
		return dErrors.Force(err, dErrors.CodeAuditWriteFailed, "failed to record access decision")
	}
	return nil
}
