package access

import (
	"context"
	"slices"

	"privata/internal/cache"
	"privata/internal/gate"
	"privata/internal/storage"
	"privata/pkg/platform/tracer"
)

// FindByID reads one record of op.SubjectID. Fields the gate denies are
// stripped from the result; a fully denied read returns the decision and a
// compliance_denied error.
func (e *Engine) FindByID(ctx context.Context, op Operation, id string) (rec storage.Record, decision *gate.Decision, err error) {
	ctx, span := e.startSpan(ctx, tracer.SpanAccessFind, op)
	defer func() {
		e.record("find", err)
		span.End(err)
	}()

	t, err := e.prepare(ctx, op)
	if err != nil {
		return nil, nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrRegion, t.region.String()))

	fields := op.Fields
	if len(fields) == 0 {
		fields = t.schema.AllFields()
	}
	decision, err = e.gate.Evaluate(ctx, op.gateRequest(gate.OpRead, fields, id, t.region))
	if err != nil {
		return nil, nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, decision, err
	}

	key := cache.RecordKey(t.region, op.Model, id)
	stored, hit := e.cache.get(ctx, key)
	span.SetAttributes(tracer.Bool(tracer.AttrCacheHit, hit))
	if !hit {
		stored, err = t.adapter.FindByID(ctx, op.Model, id, storage.Options{Region: t.region, Consistency: op.consistency()})
		if err != nil {
			return nil, nil, translate(ctx, err, "failed to read record")
		}
		e.cache.set(ctx, key, stored)
	}
	if !owned(stored, t.schema, op.SubjectID) {
		return nil, nil, errNotFound(op.Model, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, translate(ctx, err, "read aborted")
	}

	e.metrics.AddStrippedFields("find", len(decision.DeniedFields))
	return stored.Project(decision.AllowedFields), decision, nil
}

// FindMany runs q over the subject's live records. Select fields the gate
// denies are dropped; a denied filter or sort field denies the whole query.
func (e *Engine) FindMany(ctx context.Context, op Operation, q storage.Query) (recs []storage.Record, decision *gate.Decision, err error) {
	ctx, span := e.startSpan(ctx, tracer.SpanAccessFindMany, op)
	defer func() {
		e.record("find_many", err)
		span.End(err)
	}()

	if q.Model == "" {
		q.Model = op.Model
	}
	if op.Model == "" {
		op.Model = q.Model
	}
	t, err := e.prepare(ctx, op)
	if err != nil {
		return nil, nil, err
	}
	if err := q.Where.Validate(); err != nil {
		return nil, nil, translate(ctx, err, "invalid query filter")
	}

	selected := q.Select
	if len(selected) == 0 {
		selected = op.Fields
	}
	if len(selected) == 0 {
		selected = t.schema.AllFields()
	}
	req := op.gateRequest(gate.OpRead, selected, "", t.region)
	req.Required = append(q.Where.Fields(), q.SortFields()...)
	decision, err = e.gate.Evaluate(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, decision, err
	}

	scoped := q
	scoped.Model = op.Model
	scoped.Select = allowedOf(selected, decision)
	scoped.Where = storage.And(q.Where, storage.Eq(t.schema.SubjectField, op.SubjectID.String()), storage.Live())
	recs, err = t.adapter.FindMany(ctx, scoped, storage.Options{Region: t.region, Consistency: op.consistency()})
	if err != nil {
		return nil, nil, translate(ctx, err, "failed to query records")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, translate(ctx, err, "query aborted")
	}

	for i, r := range recs {
		recs[i] = r.Project(scoped.Select)
	}
	e.metrics.AddStrippedFields("find_many", len(selected)-len(scoped.Select))
	span.SetAttributes(tracer.Int(tracer.AttrRecordCnt, len(recs)))
	return recs, decision, nil
}

// allowedOf keeps the fields of want the decision allows, in order.
func allowedOf(want []string, d *gate.Decision) []string {
	out := make([]string, 0, len(want))
	for _, f := range want {
		if d.Allows(f) && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
