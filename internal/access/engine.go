// Package access is the data access engine. Every read and write of a
// registered model resolves the subject's region, passes the compliance gate
// and runs against that region's store, with writes audited in the same
// transaction as the data change.
package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"privata/internal/access/metrics"
	"privata/internal/cache"
	"privata/internal/gate"
	"privata/internal/platform/privacy"
	regionmodels "privata/internal/region/models"
	"privata/internal/schema"
	"privata/internal/storage"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/audit"
	"privata/pkg/platform/circuit"
	"privata/pkg/platform/sentinel"
	"privata/pkg/platform/tracer"
)

const defaultCacheTTL = 5 * time.Minute

// Evaluator is the compliance gate.
type Evaluator interface {
	Evaluate(ctx context.Context, req gate.Request) (*gate.Decision, error)
}

// Resolver is the region router.
type Resolver interface {
	Resolve(ctx context.Context, in regionmodels.Input) (regionmodels.Resolution, error)
	Pin(ctx context.Context, subjectID domain.SubjectID, region domain.Region) error
}

// Schemas looks up registered models.
type Schemas interface {
	MustLookup(model string) (schema.ModelSchema, error)
	Models() []string
}

// Adapters maps regions onto stores.
type Adapters interface {
	Adapter(region domain.Region) (storage.Adapter, error)
}

// Engine runs compliant CRUD against regional stores.
type Engine struct {
	schemas  Schemas
	router   Resolver
	gate     Evaluator
	adapters Adapters
	auditor  audit.Emitter

	cache         *recordCache
	pseudonymizer *privacy.Pseudonymizer
	metrics       *metrics.Metrics
	logger        *slog.Logger
	tracer        tracer.Tracer
}

// Option configures the Engine.
type Option func(*Engine)

// WithCache enables the record cache. The breaker guards reads and fills.
func WithCache(c cache.Cache, breaker *circuit.Breaker, ttl time.Duration) Option {
	return func(e *Engine) {
		if c == nil {
			return
		}
		if breaker == nil {
			breaker = circuit.New(recordCacheName)
		}
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		e.cache = &recordCache{cache: c, breaker: breaker, ttl: ttl, cacheMetrics: cache.NewMetrics()}
	}
}

// WithPseudonymizer enables EraseSubject.
func WithPseudonymizer(p *privacy.Pseudonymizer) Option {
	return func(e *Engine) {
		e.pseudonymizer = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// New creates an engine. All collaborators are required.
func New(schemas Schemas, router Resolver, evaluator Evaluator, adapters Adapters, auditor audit.Emitter, opts ...Option) *Engine {
	if schemas == nil {
		panic("access.New: schemas are required")
	}
	if router == nil {
		panic("access.New: region router is required")
	}
	if evaluator == nil {
		panic("access.New: compliance gate is required")
	}
	if adapters == nil {
		panic("access.New: storage adapters are required")
	}
	if auditor == nil {
		panic("access.New: auditor is required")
	}
	e := &Engine{
		schemas:  schemas,
		router:   router,
		gate:     evaluator,
		adapters: adapters,
		auditor:  auditor,
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache != nil {
		e.cache.metrics = e.metrics
		e.cache.logger = e.logger
	}
	return e
}

// target is everything resolved before an operation touches a store.
type target struct {
	schema  schema.ModelSchema
	region  domain.Region
	adapter storage.Adapter
	source  regionmodels.Source
}

func (e *Engine) prepare(ctx context.Context, op Operation) (target, error) {
	if err := ctx.Err(); err != nil {
		return target{}, dErrors.Wrap(err, dErrors.CodeTimeout, "operation aborted")
	}
	if op.SubjectID.IsNil() {
		return target{}, dErrors.New(dErrors.CodeInvalidInput, "subject ID is required")
	}
	s, err := e.schemas.MustLookup(op.Model)
	if err != nil {
		return target{}, err
	}
	res, err := e.router.Resolve(ctx, regionmodels.Input{
		SubjectID: op.SubjectID,
		Data:      op.Data,
		Request:   op.Request,
	})
	if err != nil {
		return target{}, err
	}
	adapter, err := e.adapters.Adapter(res.Region)
	if err != nil {
		return target{}, err
	}
	return target{schema: s, region: res.Region, adapter: adapter, source: res.Source}, nil
}

// owned reports whether rec is a live record of subject.
func owned(rec storage.Record, s schema.ModelSchema, subjectID domain.SubjectID) bool {
	if rec == nil || rec.IsDeleted() {
		return false
	}
	owner, _ := rec[s.SubjectField].(string)
	return owner == subjectID.String()
}

func (e *Engine) emit(ctx context.Context, action audit.Action, t target, subjectID domain.SubjectID, entityID string, fields []string, details map[string]any) error {
	framework := audit.FrameworkGDPR
	for _, f := range fields {
		if t.schema.Class(f) == schema.ClassPHI {
			framework = audit.FrameworkHIPAA
			break
		}
	}
	if details == nil {
		details = map[string]any{}
	}
	details["fields"] = fields
	err := e.auditor.Log(ctx, audit.Event{
		Action:     action,
		EntityType: t.schema.Name,
		EntityID:   entityID,
		SubjectID:  subjectID.String(),
		Region:     t.region.String(),
		Framework:  framework,
		Details:    details,
	})
	if err != nil {
		return dErrors.Force(err, dErrors.CodeAuditWriteFailed, "failed to record data access audit event")
	}
	return nil
}

// translate maps store and context failures onto the error taxonomy.
func translate(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "record not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "record already exists")
	case errors.Is(err, sentinel.ErrInvalidInput):
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (e *Engine) record(operation string, err error) {
	switch {
	case err == nil:
		e.metrics.IncrementOperation(operation, "ok")
	case dErrors.HasCode(err, dErrors.CodeComplianceDenied):
		e.metrics.IncrementOperation(operation, "denied")
	default:
		e.metrics.IncrementOperation(operation, "error")
	}
}

func (e *Engine) startSpan(ctx context.Context, name string, op Operation) (context.Context, tracer.Span) {
	return e.tracer.Start(ctx, name,
		tracer.String(tracer.AttrModel, op.Model),
		tracer.String(tracer.AttrSubject, tracer.HashSubject(op.SubjectID.String())),
		tracer.String(tracer.AttrPurpose, op.Purpose),
	)
}

func errNotFound(model, id string) error {
	return dErrors.New(dErrors.CodeNotFound, model+" "+id+" not found")
}
