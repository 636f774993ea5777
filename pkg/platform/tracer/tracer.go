// Package tracer is the tracing seam used by the gate and the data access
// engine. Services depend on Tracer; production wires the OpenTelemetry
// adapter and tests use the no-op one.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span. A non-nil err marks it failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer starts spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to a span.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashSubject returns a short digest of a subject id so traces can be
// correlated without carrying the identifier itself.
func HashSubject(subjectID string) string {
	if subjectID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(subjectID))
	return hex.EncodeToString(sum[:8])
}

// Span names.
const (
	SpanGateEvaluate   = "gate.evaluate"
	SpanAccessFind     = "access.find"
	SpanAccessFindMany = "access.find_many"
	SpanAccessCreate   = "access.create"
	SpanAccessUpdate   = "access.update"
	SpanAccessDelete   = "access.soft_delete"
	SpanAccessErase    = "access.erase_subject"
)

// Attribute keys.
const (
	AttrModel     = "privata.model"
	AttrSubject   = "privata.subject_hash"
	AttrPurpose   = "privata.purpose"
	AttrMode      = "privata.mode"
	AttrOutcome   = "privata.outcome"
	AttrRegion    = "privata.region"
	AttrFields    = "privata.fields"
	AttrDenied    = "privata.denied_fields"
	AttrCacheHit  = "cache.hit"
	AttrRecordCnt = "privata.records"
)

// EventAuditEmitted marks the point an audit event was durably written.
const EventAuditEmitted = "audit.emitted"
