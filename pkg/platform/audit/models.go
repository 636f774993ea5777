//go:generate mockgen -source=models.go -destination=mocks/mocks.go -package=mocks Emitter,Store

// Package audit defines the append-only compliance audit trail: the event
// model, the store contract, retention policy and the filter used by query
// and export.
package audit

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action enumerates what happened. Actions are stable strings; exports and
// SIEM consumers match on them.
type Action string

const (
	ActionCreate                     Action = "CREATE"
	ActionRead                       Action = "READ"
	ActionUpdate                     Action = "UPDATE"
	ActionDelete                     Action = "DELETE"
	ActionExport                     Action = "EXPORT"
	ActionErasure                    Action = "ERASURE"
	ActionRectification              Action = "RECTIFICATION"
	ActionObjection                  Action = "OBJECTION"
	ActionConsentGranted             Action = "CONSENT_GRANTED"
	ActionConsentWithdrawn           Action = "CONSENT_WITHDRAWN"
	ActionConsentWithdrawalAttempted Action = "CONSENT_WITHDRAWAL_ATTEMPTED"
	ActionAccessDecision             Action = "ACCESS_DECISION"
	ActionRestrictionApplied         Action = "RESTRICTION_APPLIED"
	ActionRestrictionLifted          Action = "RESTRICTION_LIFTED"
	ActionRightsRequested            Action = "RIGHTS_REQUESTED"
	ActionRightsStep                 Action = "RIGHTS_STEP"
	ActionRightsCompleted            Action = "RIGHTS_COMPLETED"
)

// Framework is the regulatory regime an event is retained under.
type Framework string

const (
	FrameworkGDPR  Framework = "GDPR"
	FrameworkHIPAA Framework = "HIPAA"
)

// Event is a single immutable audit record.
type Event struct {
	ID            uuid.UUID      `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Action        Action         `json:"action"`
	EntityType    string         `json:"entity_type,omitempty"`
	EntityID      string         `json:"entity_id,omitempty"`
	SubjectID     string         `json:"subject_id,omitempty"`
	UserID        string         `json:"user_id,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Region        string         `json:"region,omitempty"`
	Framework     Framework      `json:"framework"`
	RetentionDate time.Time      `json:"retention_date"`
	RequestID     string         `json:"request_id,omitempty"`
}

// Emitter is the write side of the audit sink. Services depend on this
// rather than on a concrete publisher.
type Emitter interface {
	Log(ctx context.Context, event Event) error
}

// Filter selects events by equality on the identifying fields and an
// inclusive timestamp range. Zero values do not constrain.
type Filter struct {
	UserID     string
	SubjectID  string
	Action     Action
	EntityType string
	EntityID   string
	From       *time.Time
	To         *time.Time
}

// Matches reports whether e satisfies every set constraint of f.
func (f Filter) Matches(e Event) bool {
	switch {
	case f.UserID != "" && e.UserID != f.UserID:
		return false
	case f.SubjectID != "" && e.SubjectID != f.SubjectID:
		return false
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.EntityType != "" && e.EntityType != f.EntityType:
		return false
	case f.EntityID != "" && e.EntityID != f.EntityID:
		return false
	case f.From != nil && e.Timestamp.Before(*f.From):
		return false
	case f.To != nil && e.Timestamp.After(*f.To):
		return false
	}
	return true
}

// MaxPageSize bounds how many events a store returns per Scan call.
const MaxPageSize = 1000

// Page requests one slice of a scroll. An empty Cursor starts at the oldest event.
type Page struct {
	Cursor string
	Limit  int
}

// Size returns the effective page size, clamped to (0, MaxPageSize].
func (p Page) Size() int {
	if p.Limit <= 0 || p.Limit > MaxPageSize {
		return MaxPageSize
	}
	return p.Limit
}

// Store is the append-only persistence contract. Events are scrolled in
// (timestamp, id) order; Scan returns the next cursor, or "" when exhausted.
type Store interface {
	Append(ctx context.Context, event Event) error
	AppendBatch(ctx context.Context, events []Event) error
	Scan(ctx context.Context, filter Filter, page Page) ([]Event, string, error)
}

// Cursor is the keyset position after the last returned event.
type Cursor struct {
	Timestamp time.Time
	ID        uuid.UUID
}

// CursorAfter builds the cursor positioned after e.
func CursorAfter(e Event) Cursor {
	return Cursor{Timestamp: e.Timestamp, ID: e.ID}
}

// Encode returns the opaque string form handed to callers.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.Timestamp.UnixNano(), 10) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// After reports whether e sorts strictly after the cursor position.
func (c Cursor) After(e Event) bool {
	if e.Timestamp.Equal(c.Timestamp) {
		return strings.Compare(e.ID.String(), c.ID.String()) > 0
	}
	return e.Timestamp.After(c.Timestamp)
}

// DecodeCursor parses a cursor produced by Encode.
func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return Cursor{}, fmt.Errorf("malformed cursor")
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("parse cursor time: %w", err)
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return Cursor{}, fmt.Errorf("parse cursor id: %w", err)
	}
	return Cursor{Timestamp: time.Unix(0, n).UTC(), ID: uid}, nil
}
