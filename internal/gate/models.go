package gate

import (
	"fmt"
	"slices"
	"strings"

	"privata/internal/schema"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
)

// Mode selects how strictly consent is enforced.
type Mode string

const (
	// ModeStrict denies personal data without active consent.
	ModeStrict Mode = "strict"
	// ModeRelaxed logs missing consent but does not block.
	ModeRelaxed Mode = "relaxed"
	// ModeDisabled skips consent checks entirely.
	ModeDisabled Mode = "disabled"
)

// ParseMode parses a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeStrict, ModeRelaxed, ModeDisabled:
		return m, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown compliance mode %q", s))
}

// LegalBasis is the GDPR Article 6 ground a request claims.
type LegalBasis string

const (
	BasisConsent             LegalBasis = "consent"
	BasisContract            LegalBasis = "contract"
	BasisLegalObligation     LegalBasis = "legal_obligation"
	BasisVitalInterests      LegalBasis = "vital_interests"
	BasisPublicTask          LegalBasis = "public_task"
	BasisLegitimateInterests LegalBasis = "legitimate_interests"
)

// ParseLegalBasis accepts an empty value as "no basis claimed".
func ParseLegalBasis(s string) (LegalBasis, error) {
	switch b := LegalBasis(strings.TrimSpace(s)); b {
	case "", BasisConsent, BasisContract, BasisLegalObligation, BasisVitalInterests, BasisPublicTask, BasisLegitimateInterests:
		return b, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown legal basis %q", s))
}

// HIPAA purposes that reach PHI without patient consent.
const (
	PurposeTreatment            = "treatment"
	PurposePayment              = "payment"
	PurposeHealthcareOperations = "healthcare_operations"
)

// IsPHICarveOut reports whether purpose may access PHI without consent.
func IsPHICarveOut(purpose string) bool {
	switch purpose {
	case PurposeTreatment, PurposePayment, PurposeHealthcareOperations:
		return true
	}
	return false
}

// Operation names what the caller is about to do with the fields.
type Operation string

const (
	OpRead   Operation = "READ"
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
	OpExport Operation = "EXPORT"
)

// Request describes one operation for evaluation.
type Request struct {
	Model      string
	Fields     []string
	Purpose    string
	LegalBasis LegalBasis
	SubjectID  domain.SubjectID
	Operation  Operation
	EntityID   string
	Region     domain.Region
	// Required fields cannot be dropped: denying any of them denies the
	// whole request. Query filters and sort keys go here.
	Required []string
	// RequireConsent upgrades relaxed mode to strict for this request.
	RequireConsent bool
}

// Outcome is the terminal state of an evaluation.
type Outcome string

const (
	OutcomeAllowed          Outcome = "allowed"
	OutcomeDenied           Outcome = "denied"
	OutcomePartiallyAllowed Outcome = "partially_allowed"
)

// ReasonCode explains why a field was denied or flagged.
type ReasonCode string

const (
	ReasonConsentRequired ReasonCode = "consent_required"
	ReasonRestricted      ReasonCode = "restricted"
	ReasonRestrictedAll   ReasonCode = "restricted_all_personal_data"
	ReasonRequiredDenied  ReasonCode = "required_field_denied"
	// ReasonConsentMissing flags a field allowed only because the mode is relaxed.
	ReasonConsentMissing ReasonCode = "consent_missing_relaxed"
)

// Reason attaches a code to one field.
type Reason struct {
	Field string     `json:"field"`
	Code  ReasonCode `json:"code"`
}

// Decision is the gate's answer for one request.
type Decision struct {
	Outcome       Outcome                 `json:"outcome"`
	AllowedFields []string                `json:"allowed_fields"`
	DeniedFields  []string                `json:"denied_fields"`
	Reasons       []Reason                `json:"reasons,omitempty"`
	Purpose       string                  `json:"purpose,omitempty"`
	LegalBasis    LegalBasis              `json:"legal_basis,omitempty"`
	Mode          Mode                    `json:"mode"`
	Classes       map[string]schema.Class `json:"classes,omitempty"`
}

// Allowed reports whether any part of the operation may proceed.
func (d *Decision) Allowed() bool {
	return d != nil && d.Outcome != OutcomeDenied
}

// Allows reports whether field may be processed.
func (d *Decision) Allows(field string) bool {
	if d == nil {
		return false
	}
	_, found := slices.BinarySearch(d.AllowedFields, field)
	return found
}

// Denies reports whether field was explicitly denied.
func (d *Decision) Denies(field string) bool {
	if d == nil {
		return false
	}
	_, found := slices.BinarySearch(d.DeniedFields, field)
	return found
}

// TouchesPHI reports whether any requested field is PHI.
func (d *Decision) TouchesPHI() bool {
	for _, c := range d.Classes {
		if c == schema.ClassPHI {
			return true
		}
	}
	return false
}

// Err returns a DeniedError for a denied decision and nil otherwise.
func (d *Decision) Err() error {
	if d.Allowed() {
		return nil
	}
	return &DeniedError{Decision: d}
}

// DeniedError is an explicit policy denial. It unwraps to a
// compliance_denied domain error and carries the decision for callers.
type DeniedError struct {
	Decision *Decision
}

func (e *DeniedError) Error() string {
	if e.Decision == nil || len(e.Decision.DeniedFields) == 0 {
		return "compliance denied"
	}
	return "compliance denied: " + strings.Join(e.Decision.DeniedFields, ", ")
}

func (e *DeniedError) Unwrap() error {
	return &dErrors.Error{Code: dErrors.CodeComplianceDenied, Message: e.Error()}
}

// ErrorDetails exposes the decision in HTTP error bodies.
func (e *DeniedError) ErrorDetails() any {
	return e.Decision
}
