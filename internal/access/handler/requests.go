package handler

import (
	"strings"

	"privata/internal/gate"
	"privata/internal/storage"
)

// Headers naming the subject and the processing context of a data call.
const (
	HeaderSubject    = "X-Subject-ID"
	HeaderPurpose    = "X-Processing-Purpose"
	HeaderLegalBasis = "X-Legal-Basis"
)

// WriteRequest is the body of create and update calls.
type WriteRequest struct {
	Data           map[string]any `json:"data" validate:"required,min=1,max=500"`
	RequireConsent bool           `json:"require_consent,omitempty"`
}

// QueryRequest is the body of a query call.
type QueryRequest struct {
	Select         []string         `json:"select,omitempty" validate:"max=200,dive,required,max=100"`
	Where          storage.Filter   `json:"where"`
	AnyOf          []storage.Filter `json:"any_of,omitempty" validate:"max=50"`
	Sort           []storage.Sort   `json:"sort,omitempty" validate:"max=10"`
	Limit          int              `json:"limit,omitempty" validate:"gte=0,lte=1000"`
	Offset         int              `json:"offset,omitempty" validate:"gte=0"`
	RequireConsent bool             `json:"require_consent,omitempty"`
}

// Normalize trims selected field names.
func (r *QueryRequest) Normalize() {
	if r == nil {
		return
	}
	for i, f := range r.Select {
		r.Select[i] = strings.TrimSpace(f)
	}
}

// RecordResponse returns a record with the decision that shaped it.
type RecordResponse struct {
	Record   storage.Record `json:"record"`
	Decision *gate.Decision `json:"decision,omitempty"`
}
