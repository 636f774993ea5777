package models

import (
	"strings"
	"time"

	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
)

// Purpose is a free-form processing purpose ("marketing", "analytics",
// "treatment"). Purposes are case-sensitive after trimming.
type Purpose string

const maxPurposeLength = 100

// ParsePurpose trims and validates a purpose taken from an API boundary.
func ParsePurpose(s string) (Purpose, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "purpose cannot be empty")
	}
	if len(s) > maxPurposeLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "purpose is too long")
	}
	return Purpose(s), nil
}

func (p Purpose) String() string { return string(p) }

// Status is the derived lifecycle state of a consent record.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusWithdrawn Status = "withdrawn"
	StatusDenied    Status = "denied"
)

// Record captures a subject's consent decision for one purpose.
type Record struct {
	ID          domain.ConsentID `json:"id"`
	SubjectID   domain.SubjectID `json:"subject_id"`
	Purpose     Purpose          `json:"purpose"`
	Granted     bool             `json:"granted"`
	GrantedAt   time.Time        `json:"granted_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	WithdrawnAt *time.Time       `json:"withdrawn_at,omitempty"`
	Details     map[string]any   `json:"details,omitempty"`
}

// IsActive reports whether the record currently authorizes processing.
func (c *Record) IsActive(now time.Time) bool {
	return c.Granted && c.WithdrawnAt == nil && now.Before(c.ExpiresAt)
}

// Status derives the lifecycle state at now.
func (c *Record) Status(now time.Time) Status {
	switch {
	case c.WithdrawnAt != nil:
		return StatusWithdrawn
	case !c.Granted:
		return StatusDenied
	case !now.Before(c.ExpiresAt):
		return StatusExpired
	default:
		return StatusActive
	}
}

// Clone returns a deep copy so stores never hand out shared state.
func (c *Record) Clone() *Record {
	if c == nil {
		return nil
	}
	out := *c
	if c.WithdrawnAt != nil {
		t := *c.WithdrawnAt
		out.WithdrawnAt = &t
	}
	if c.Details != nil {
		out.Details = make(map[string]any, len(c.Details))
		for k, v := range c.Details {
			out.Details[k] = v
		}
	}
	return &out
}
