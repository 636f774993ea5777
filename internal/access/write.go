package access

import (
	"context"

	"privata/internal/cache"
	"privata/internal/gate"
	regionmodels "privata/internal/region/models"
	"privata/internal/storage"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/audit"
	"privata/pkg/platform/tracer"
	"privata/pkg/requestcontext"
)

// payload separates the caller's write data from the subject reference,
// which the engine owns. A payload naming another subject is rejected.
func payload(op Operation, subjectField string) (storage.Record, error) {
	if len(op.Data) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "write payload is empty")
	}
	data := op.Data.Clone()
	if owner, ok := data[subjectField]; ok {
		if s, _ := owner.(string); s != op.SubjectID.String() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "payload belongs to a different subject")
		}
		delete(data, subjectField)
	}
	delete(data, storage.FieldDeleted)
	delete(data, storage.FieldDeletedAt)
	return data, nil
}

// Create stores a new record for op.SubjectID. Denied fields are dropped from
// the input; the fields actually written are audited in the same
// transaction. The subject's region is pinned on first write.
func (e *Engine) Create(ctx context.Context, op Operation) (created storage.Record, decision *gate.Decision, err error) {
	ctx, span := e.startSpan(ctx, tracer.SpanAccessCreate, op)
	defer func() {
		e.record("create", err)
		span.End(err)
	}()

	t, err := e.prepare(ctx, op)
	if err != nil {
		return nil, nil, err
	}
	data, err := payload(op, t.schema.SubjectField)
	if err != nil {
		return nil, nil, err
	}
	decision, err = e.gate.Evaluate(ctx, op.gateRequest(gate.OpCreate, data.Fields(), data.ID(), t.region))
	if err != nil {
		return nil, nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, decision, err
	}

	write := data.Project(decision.AllowedFields)
	write[t.schema.SubjectField] = op.SubjectID.String()

	err = storage.RunInTx(ctx, t.adapter, storage.Options{Region: t.region, Consistency: storage.ConsistencyStrong}, func(tx storage.Tx) error {
		rec, err := tx.Create(ctx, op.Model, write, storage.Options{Region: t.region})
		if err != nil {
			return err
		}
		if t.source != regionmodels.SourceMapping {
			if err := e.router.Pin(ctx, op.SubjectID, t.region); err != nil {
				return err
			}
		}
		if err := e.emit(ctx, audit.ActionCreate, t, op.SubjectID, rec.ID(), write.Fields(), writeDetails(op, decision)); err != nil {
			return err
		}
		created = rec
		return nil
	})
	if err != nil {
		return nil, nil, translate(ctx, err, "failed to create record")
	}
	span.AddEvent(tracer.EventAuditEmitted)

	e.cache.set(ctx, cache.RecordKey(t.region, op.Model, created.ID()), created)
	e.metrics.AddStrippedFields("create", len(decision.DeniedFields))
	return created, decision, nil
}

// Update merges op.Data into the subject's record id. Denied fields are
// dropped from the input.
func (e *Engine) Update(ctx context.Context, op Operation, id string) (updated storage.Record, decision *gate.Decision, err error) {
	ctx, span := e.startSpan(ctx, tracer.SpanAccessUpdate, op)
	defer func() {
		e.record("update", err)
		span.End(err)
	}()

	t, err := e.prepare(ctx, op)
	if err != nil {
		return nil, nil, err
	}
	data, err := payload(op, t.schema.SubjectField)
	if err != nil {
		return nil, nil, err
	}
	delete(data, storage.FieldID)
	if len(data) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "write payload is empty")
	}
	decision, err = e.gate.Evaluate(ctx, op.gateRequest(gate.OpUpdate, data.Fields(), id, t.region))
	if err != nil {
		return nil, nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, decision, err
	}

	write := data.Project(decision.AllowedFields)
	delete(write, storage.FieldID)
	fields := write.Fields()

	err = storage.RunInTx(ctx, t.adapter, storage.Options{Region: t.region, Consistency: storage.ConsistencyStrong}, func(tx storage.Tx) error {
		existing, err := tx.FindByID(ctx, op.Model, id, storage.Options{Region: t.region, Consistency: storage.ConsistencyStrong})
		if err != nil {
			return err
		}
		if !owned(existing, t.schema, op.SubjectID) {
			return errNotFound(op.Model, id)
		}
		rec, err := tx.Update(ctx, op.Model, id, write, storage.Options{Region: t.region})
		if err != nil {
			return err
		}
		if err := e.emit(ctx, audit.ActionUpdate, t, op.SubjectID, id, fields, writeDetails(op, decision)); err != nil {
			return err
		}
		updated = rec.Project(fields)
		return nil
	})
	// The cached copy may predate this write whatever the outcome.
	e.cache.invalidate(ctx, cache.RecordKey(t.region, op.Model, id))
	if err != nil {
		return nil, nil, translate(ctx, err, "failed to update record")
	}
	span.AddEvent(tracer.EventAuditEmitted)

	e.metrics.AddStrippedFields("update", len(decision.DeniedFields))
	return updated, decision, nil
}

// SoftDelete marks the subject's record id deleted. The record stays in the
// store for retention but is invisible to every read.
func (e *Engine) SoftDelete(ctx context.Context, op Operation, id string) (err error) {
	ctx, span := e.startSpan(ctx, tracer.SpanAccessDelete, op)
	defer func() {
		e.record("soft_delete", err)
		span.End(err)
	}()

	op.Data = nil
	t, err := e.prepare(ctx, op)
	if err != nil {
		return err
	}
	markers := []string{storage.FieldDeleted, storage.FieldDeletedAt}
	decision, err := e.gate.Evaluate(ctx, op.gateRequest(gate.OpDelete, markers, id, t.region))
	if err != nil {
		return err
	}
	if err := decision.Err(); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	err = storage.RunInTx(ctx, t.adapter, storage.Options{Region: t.region, Consistency: storage.ConsistencyStrong}, func(tx storage.Tx) error {
		existing, err := tx.FindByID(ctx, op.Model, id, storage.Options{Region: t.region, Consistency: storage.ConsistencyStrong})
		if err != nil {
			return err
		}
		if !owned(existing, t.schema, op.SubjectID) {
			return errNotFound(op.Model, id)
		}
		if _, err := tx.Update(ctx, op.Model, id, storage.Record{
			storage.FieldDeleted:   true,
			storage.FieldDeletedAt: now,
		}, storage.Options{Region: t.region}); err != nil {
			return err
		}
		return e.emit(ctx, audit.ActionDelete, t, op.SubjectID, id, markers, writeDetails(op, decision))
	})
	e.cache.invalidate(ctx, cache.RecordKey(t.region, op.Model, id))
	if err != nil {
		return translate(ctx, err, "failed to delete record")
	}
	return nil
}

func writeDetails(op Operation, d *gate.Decision) map[string]any {
	details := map[string]any{
		"purpose":     op.Purpose,
		"legal_basis": string(op.LegalBasis),
	}
	if len(d.DeniedFields) > 0 {
		details["dropped_fields"] = d.DeniedFields
	}
	return details
}
