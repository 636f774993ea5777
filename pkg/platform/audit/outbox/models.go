package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "privata/pkg/platform/audit"
)

// AggregateAuditEvent is the aggregate type for audit trail entries.
const AggregateAuditEvent = "audit_event"

// Entry is a pending audit event in the outbox table, written in the same
// transaction as the audit row and later streamed to Kafka.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// IsPending returns true if this entry has not been published yet.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// FromAuditEvent builds the outbox entry for an audit event. The entry id is
// the event id so republishing is idempotent for consumers.
func FromAuditEvent(e audit.Event) (*Entry, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal audit event: %w", err)
	}
	aggregateID := e.SubjectID
	if aggregateID == "" {
		aggregateID = e.EntityID
	}
	return &Entry{
		ID:            e.ID,
		AggregateType: AggregateAuditEvent,
		AggregateID:   aggregateID,
		EventType:     string(e.Action),
		Payload:       payload,
		CreatedAt:     e.Timestamp,
	}, nil
}
