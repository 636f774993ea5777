// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "privata/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a ConsentID where a RightsRequestID is expected.
type (
	ConsentID       uuid.UUID
	RestrictionID   uuid.UUID
	RightsRequestID uuid.UUID
)

// SubjectID identifies a data subject. Subject ids come from the calling
// application ("user-123", an email hash, a UUID) so they are opaque strings.
type SubjectID string

const maxSubjectIDLength = 128

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseSubjectID(s string) (SubjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject ID cannot be empty")
	}
	if len(s) > maxSubjectIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject ID is too long")
	}
	return SubjectID(s), nil
}

func ParseConsentID(s string) (ConsentID, error) {
	id, err := parseUUID(s, "consent ID")
	return ConsentID(id), err
}

func ParseRestrictionID(s string) (RestrictionID, error) {
	id, err := parseUUID(s, "restriction ID")
	return RestrictionID(id), err
}

func ParseRightsRequestID(s string) (RightsRequestID, error) {
	id, err := parseUUID(s, "rights request ID")
	return RightsRequestID(id), err
}

// New functions - generate fresh random identifiers.

func NewConsentID() ConsentID             { return ConsentID(uuid.New()) }
func NewRestrictionID() RestrictionID     { return RestrictionID(uuid.New()) }
func NewRightsRequestID() RightsRequestID { return RightsRequestID(uuid.New()) }

// String methods - for logging and debugging.

func (id SubjectID) String() string       { return string(id) }
func (id ConsentID) String() string       { return uuid.UUID(id).String() }
func (id RestrictionID) String() string   { return uuid.UUID(id).String() }
func (id RightsRequestID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id SubjectID) IsNil() bool       { return id == "" }
func (id ConsentID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id RestrictionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RightsRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}
