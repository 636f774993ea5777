package models

import (
	"slices"
	"time"

	"privata/pkg/domain"
)

// Scope says how much of a subject's data a restriction covers.
type Scope string

const (
	ScopeAllPersonalData    Scope = "all_personal_data"
	ScopeSpecificCategories Scope = "specific_categories"
)

// Restriction is an Article 18 processing restriction. While Active, the
// gate denies processing of covered data unless the request's legal basis
// is one of Exceptions.
type Restriction struct {
	ID             domain.RestrictionID `json:"id"`
	SubjectID      domain.SubjectID     `json:"subject_id"`
	Scope          Scope                `json:"scope"`
	DataCategories []string             `json:"data_categories,omitempty"`
	Exceptions     []string             `json:"exceptions,omitempty"`
	Reason         string               `json:"reason,omitempty"`
	Active         bool                 `json:"active"`
	CreatedAt      time.Time            `json:"created_at"`
	LiftedAt       *time.Time           `json:"lifted_at,omitempty"`
}

// CoversAll reports whether the restriction blocks the whole operation.
func (r *Restriction) CoversAll() bool {
	return r.Scope == ScopeAllPersonalData
}

// Covers reports whether a field of the given class falls under the
// restriction. Categories match either a class name (PII, PHI) or a field
// name.
func (r *Restriction) Covers(field, class string) bool {
	if !r.Active {
		return false
	}
	if r.CoversAll() {
		return true
	}
	return slices.Contains(r.DataCategories, class) || slices.Contains(r.DataCategories, field)
}

// Excepts reports whether processing under basis is exempt.
func (r *Restriction) Excepts(basis string) bool {
	return basis != "" && slices.Contains(r.Exceptions, basis)
}

// Clone returns a deep copy.
func (r *Restriction) Clone() *Restriction {
	if r == nil {
		return nil
	}
	out := *r
	out.DataCategories = slices.Clone(r.DataCategories)
	out.Exceptions = slices.Clone(r.Exceptions)
	if r.LiftedAt != nil {
		t := *r.LiftedAt
		out.LiftedAt = &t
	}
	return &out
}
