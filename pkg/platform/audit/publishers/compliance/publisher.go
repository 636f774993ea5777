// Package compliance provides the fail-closed audit sink.
//
// Every write is synchronous: the caller blocks until the store accepts the
// event. A persistence failure is returned as audit_write_failed and the
// calling operation must not commit.
package compliance

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	dErrors "privata/pkg/domain-errors"
	audit "privata/pkg/platform/audit"
	"privata/pkg/platform/audit/export"
	"privata/pkg/requestcontext"
)

// DefaultQueryLimit caps Query results. Larger result sets go through Export.
const DefaultQueryLimit = 10000

// Publisher is the audit sink: log, logBatch, query and export.
type Publisher struct {
	store      audit.Store
	retention  audit.RetentionPolicy
	queryLimit int
	logger     *slog.Logger
	metrics    *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithRetentionPolicy sets the per-framework retention table.
func WithRetentionPolicy(policy audit.RetentionPolicy) Option {
	return func(p *Publisher) {
		p.retention = policy
	}
}

// WithQueryLimit bounds how many events Query materializes.
func WithQueryLimit(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queryLimit = n
		}
	}
}

// New creates a compliance publisher.
func New(store audit.Store, opts ...Option) *Publisher {
	if store == nil {
		panic("audit store is required")
	}
	p := &Publisher{
		store:      store,
		retention:  audit.NewRetentionPolicy(nil),
		queryLimit: DefaultQueryLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Log synchronously persists one event.
func (p *Publisher) Log(ctx context.Context, event audit.Event) error {
	event, err := p.prepare(ctx, event)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := p.store.Append(ctx, event); err != nil {
		return p.failed(ctx, err, event.Action, 1)
	}
	p.metrics.observePersist(time.Since(start).Seconds())
	p.metrics.incLogged(string(event.Action))
	return nil
}

// LogBatch persists all events atomically.
func (p *Publisher) LogBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	prepared := make([]audit.Event, 0, len(events))
	for _, e := range events {
		pe, err := p.prepare(ctx, e)
		if err != nil {
			return err
		}
		prepared = append(prepared, pe)
	}
	start := time.Now()
	if err := p.store.AppendBatch(ctx, prepared); err != nil {
		return p.failed(ctx, err, prepared[0].Action, len(prepared))
	}
	p.metrics.observePersist(time.Since(start).Seconds())
	for _, e := range prepared {
		p.metrics.incLogged(string(e.Action))
	}
	return nil
}

// Query returns matching events in chronological order, up to the query limit.
func (p *Publisher) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	var out []audit.Event
	page := audit.Page{}
	for {
		events, next, err := p.store.Scan(ctx, filter, page)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "query audit events")
		}
		out = append(out, events...)
		if len(out) >= p.queryLimit {
			return out[:p.queryLimit], nil
		}
		if next == "" {
			return out, nil
		}
		page.Cursor = next
	}
}

// ExportTo streams matching events to w.
func (p *Publisher) ExportTo(ctx context.Context, w io.Writer, filter audit.Filter, format export.Format) error {
	n, err := export.Write(ctx, w, p.store, filter, format, export.Options{})
	p.metrics.addExported(string(format), n)
	if err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit export failed",
				"format", format,
				"exported", n,
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "export audit events")
	}
	return nil
}

// Export returns the serialized export as a string.
func (p *Publisher) Export(ctx context.Context, filter audit.Filter, format export.Format) (string, error) {
	var buf bytes.Buffer
	if err := p.ExportTo(ctx, &buf, filter, format); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// prepare stamps id, time, correlation and retention. Retention is computed
// here and never again.
func (p *Publisher) prepare(ctx context.Context, e audit.Event) (audit.Event, error) {
	if e.Action == "" {
		return e, dErrors.New(dErrors.CodeAuditWriteFailed, "audit event requires an action")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = requestcontext.Now(ctx)
	}
	e.Timestamp = e.Timestamp.UTC()
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
	if e.UserID == "" {
		e.UserID = requestcontext.Actor(ctx)
	}
	if e.Framework == "" {
		e.Framework = audit.FrameworkGDPR
	}
	if e.RetentionDate.IsZero() {
		e.RetentionDate = p.retention.RetentionDate(e.Framework, e.Timestamp)
	}
	return e, nil
}

func (p *Publisher) failed(ctx context.Context, err error, action audit.Action, count int) error {
	p.metrics.incFailures()
	if p.logger != nil {
		p.logger.ErrorContext(ctx, "CRITICAL: audit persistence failed",
			"action", action,
			"events", count,
			"error", err,
		)
	}
	return dErrors.Force(err, dErrors.CodeAuditWriteFailed, "audit write failed")
}
