package access

import (
	"context"
	"slices"

	"privata/internal/cache"
	"privata/internal/storage"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/audit"
	"privata/pkg/platform/tracer"
	"privata/pkg/requestcontext"
)

// The operations below fulfil data subject rights. They bypass consent
// because the subject's own request is the legal ground, and every one of
// them is audited.

const (
	detailBasis      = "basis"
	basisRightsOrder = "data_subject_request"
	fieldErasedAt    = "erased_at"
)

func (e *Engine) subjectTarget(ctx context.Context, subjectID domain.SubjectID, model string) (target, error) {
	return e.prepare(ctx, Operation{Model: model, SubjectID: subjectID})
}

// SubjectRecords returns every live record of model held for subject.
func (e *Engine) SubjectRecords(ctx context.Context, subjectID domain.SubjectID, model string) (recs []storage.Record, err error) {
	defer func() { e.record("subject_records", err) }()

	t, err := e.subjectTarget(ctx, subjectID, model)
	if err != nil {
		return nil, err
	}
	recs, err = t.adapter.FindMany(ctx, storage.Query{
		Model: model,
		Where: storage.And(storage.Eq(t.schema.SubjectField, subjectID.String()), storage.Live()),
	}, storage.Options{Region: t.region, Consistency: storage.ConsistencyStrong})
	if err != nil {
		return nil, translate(ctx, err, "failed to read subject records")
	}
	if err := e.emit(ctx, audit.ActionRead, t, subjectID, "", t.schema.AllFields(), map[string]any{
		detailBasis: basisRightsOrder,
		"records":   len(recs),
	}); err != nil {
		return nil, err
	}
	return recs, nil
}

// EraseSubject nulls every PII and PHI field of the subject's records of
// model and replaces the subject reference with its pseudonym. Soft-deleted
// records are erased too. Audit events are never touched. Re-running after
// success erases nothing, since the records no longer carry the subject id.
func (e *Engine) EraseSubject(ctx context.Context, subjectID domain.SubjectID, model string) (erased int, err error) {
	ctx, span := e.startSpan(ctx, tracer.SpanAccessErase, Operation{Model: model, SubjectID: subjectID})
	defer func() {
		e.record("erase_subject", err)
		span.End(err)
	}()

	if e.pseudonymizer == nil {
		return 0, dErrors.New(dErrors.CodeInternal, "erasure requires a pseudonymization key")
	}
	t, err := e.subjectTarget(ctx, subjectID, model)
	if err != nil {
		return 0, err
	}
	sensitive := slices.DeleteFunc(t.schema.SensitiveFields(), func(f string) bool { return f == t.schema.SubjectField })
	pseudonym := e.pseudonymizer.Pseudonymize(subjectID.String())
	now := requestcontext.Now(ctx)

	var keys []string
	err = storage.RunInTx(ctx, t.adapter, storage.Options{Region: t.region, Consistency: storage.ConsistencyStrong}, func(tx storage.Tx) error {
		keys = keys[:0]
		recs, err := tx.FindMany(ctx, storage.Query{
			Model: model,
			Where: storage.Eq(t.schema.SubjectField, subjectID.String()),
		}, storage.Options{Region: t.region, Consistency: storage.ConsistencyStrong})
		if err != nil {
			return err
		}
		for _, rec := range recs {
			patch := storage.Record{t.schema.SubjectField: pseudonym, fieldErasedAt: now}
			var cleared []string
			for _, f := range sensitive {
				if v, ok := rec[f]; ok && v != nil {
					patch[f] = nil
					cleared = append(cleared, f)
				}
			}
			if _, err := tx.Update(ctx, model, rec.ID(), patch, storage.Options{Region: t.region}); err != nil {
				return err
			}
			if err := e.emit(ctx, audit.ActionErasure, t, subjectID, rec.ID(), cleared, map[string]any{
				detailBasis: basisRightsOrder,
				"pseudonym": pseudonym,
			}); err != nil {
				return err
			}
			keys = append(keys, cache.RecordKey(t.region, model, rec.ID()))
		}
		return nil
	})
	e.cache.invalidate(ctx, keys...)
	if err != nil {
		return 0, translate(ctx, err, "failed to erase subject records")
	}
	return len(keys), nil
}

// Rectify applies corrections to the subject's record id.
func (e *Engine) Rectify(ctx context.Context, subjectID domain.SubjectID, model, id string, corrections storage.Record) (rec storage.Record, err error) {
	defer func() { e.record("rectify", err) }()

	t, err := e.subjectTarget(ctx, subjectID, model)
	if err != nil {
		return nil, err
	}
	if len(corrections) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no corrections given")
	}
	for _, f := range []string{storage.FieldID, t.schema.SubjectField, storage.FieldDeleted, storage.FieldDeletedAt} {
		if _, ok := corrections[f]; ok {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "field "+f+" cannot be rectified")
		}
	}
	fields := corrections.Fields()

	err = storage.RunInTx(ctx, t.adapter, storage.Options{Region: t.region, Consistency: storage.ConsistencyStrong}, func(tx storage.Tx) error {
		existing, err := tx.FindByID(ctx, model, id, storage.Options{Region: t.region, Consistency: storage.ConsistencyStrong})
		if err != nil {
			return err
		}
		if !owned(existing, t.schema, subjectID) {
			return errNotFound(model, id)
		}
		updated, err := tx.Update(ctx, model, id, corrections, storage.Options{Region: t.region})
		if err != nil {
			return err
		}
		if err := e.emit(ctx, audit.ActionRectification, t, subjectID, id, fields, map[string]any{
			detailBasis: basisRightsOrder,
		}); err != nil {
			return err
		}
		rec = updated.Project(fields)
		return nil
	})
	e.cache.invalidate(ctx, cache.RecordKey(t.region, model, id))
	if err != nil {
		return nil, translate(ctx, err, "failed to rectify record")
	}
	return rec, nil
}

// Models lists the registered models, the scope of a rights request.
func (e *Engine) Models() []string {
	return e.schemas.Models()
}
