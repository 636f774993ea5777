// Package query is the compliance-aware query builder. Queries are assembled
// with an immutable Builder and run through the data access engine, which
// drops denied select fields and refuses queries that filter or sort on
// denied fields.
package query

import (
	"slices"

	"privata/internal/gate"
	"privata/internal/storage"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/fieldset"
)

const maxLimit = 1000

// Builder describes a query over one model. Every method returns a new
// Builder; a Builder can be shared and extended concurrently.
type Builder struct {
	model          string
	selected       []string
	where          storage.Filter
	sort           []storage.Sort
	limit          int
	offset         int
	purpose        string
	legalBasis     gate.LegalBasis
	requireConsent bool
}

// From starts a query over model.
func From(model string) Builder {
	return Builder{model: model}
}

// Select adds fields to the select list. An empty list selects every
// registered field.
func (b Builder) Select(fields ...string) Builder {
	b.selected = append(slices.Clip(b.selected), fields...)
	return b
}

// Where ANDs one condition onto the filter.
func (b Builder) Where(field string, op storage.Op, value any) Builder {
	return b.And(storage.Cond(field, op, value))
}

// And ANDs every filter onto the current filter.
func (b Builder) And(filters ...storage.Filter) Builder {
	b.where = storage.And(append([]storage.Filter{b.where}, filters...)...)
	return b
}

// Or matches records satisfying the current filter or all of filters.
func (b Builder) Or(filters ...storage.Filter) Builder {
	alt := storage.And(filters...)
	if alt.IsZero() {
		return b
	}
	if b.where.IsZero() {
		b.where = alt
		return b
	}
	b.where = storage.Or(b.where, alt)
	return b
}

// OrderBy appends a sort key.
func (b Builder) OrderBy(field string, desc bool) Builder {
	b.sort = append(slices.Clip(b.sort), storage.Sort{Field: field, Desc: desc})
	return b
}

func (b Builder) Limit(n int) Builder {
	b.limit = n
	return b
}

func (b Builder) Offset(n int) Builder {
	b.offset = n
	return b
}

// Purpose sets the processing purpose the gate evaluates consent against.
func (b Builder) Purpose(purpose string) Builder {
	b.purpose = purpose
	return b
}

func (b Builder) LegalBasis(basis gate.LegalBasis) Builder {
	b.legalBasis = basis
	return b
}

// RequireConsent forces strict consent checks whatever the gate's mode.
func (b Builder) RequireConsent() Builder {
	b.requireConsent = true
	return b
}

func (b Builder) Model() string { return b.model }

// Fields returns every field the query references: select, filter and sort.
func (b Builder) Fields() []string {
	return fieldset.Union(b.selected, b.where.Fields(), b.Query().SortFields())
}

// Validate checks the query shape before it reaches the gate.
func (b Builder) Validate() error {
	switch {
	case b.model == "":
		return dErrors.New(dErrors.CodeInvalidInput, "query model is required")
	case b.limit < 0 || b.limit > maxLimit:
		return dErrors.New(dErrors.CodeInvalidInput, "query limit out of range")
	case b.offset < 0:
		return dErrors.New(dErrors.CodeInvalidInput, "query offset cannot be negative")
	}
	for _, s := range b.sort {
		if s.Field == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "sort field is required")
		}
	}
	if err := b.where.Validate(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid query filter")
	}
	return nil
}

// Query returns the storage query. The returned value shares no slices with
// the builder.
func (b Builder) Query() storage.Query {
	return storage.Query{
		Model:  b.model,
		Select: slices.Clone(b.selected),
		Where:  b.where,
		Sort:   slices.Clone(b.sort),
		Limit:  b.limit,
		Offset: b.offset,
	}
}
