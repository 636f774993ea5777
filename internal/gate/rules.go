package gate

import (
	"maps"
	"slices"

	restrictionmodels "privata/internal/restriction/models"
	"privata/internal/schema"
)

// consentNeeded reports whether any requested field needs consent under mode.
func consentNeeded(classes map[string]schema.Class, purpose string, mode Mode) bool {
	if mode == ModeDisabled {
		return false
	}
	for _, c := range classes {
		switch c {
		case schema.ClassPII:
			return true
		case schema.ClassPHI:
			if !IsPHICarveOut(purpose) {
				return true
			}
		}
	}
	return false
}

// evaluation accumulates per-field outcomes. A field denied by any rule stays
// denied.
type evaluation struct {
	classes map[string]schema.Class
	denied  map[string]ReasonCode
	flagged map[string]ReasonCode
}

func newEvaluation(classes map[string]schema.Class) *evaluation {
	return &evaluation{
		classes: classes,
		denied:  make(map[string]ReasonCode),
		flagged: make(map[string]ReasonCode),
	}
}

func (e *evaluation) deny(field string, code ReasonCode) {
	if _, already := e.denied[field]; !already {
		e.denied[field] = code
	}
}

// applyConsent handles steps 2 and 3: personal data without consent is
// denied in strict mode and flagged in relaxed mode.
func (e *evaluation) applyConsent(purpose string, mode Mode, consented bool) {
	if mode == ModeDisabled || consented {
		return
	}
	for field, c := range e.classes {
		needs := c == schema.ClassPII || (c == schema.ClassPHI && !IsPHICarveOut(purpose))
		if !needs {
			continue
		}
		if mode == ModeStrict {
			e.deny(field, ReasonConsentRequired)
		} else {
			e.flagged[field] = ReasonConsentMissing
		}
	}
}

// applyRestrictions handles step 4. An all-data restriction denies the
// whole operation once it touches personal data.
func (e *evaluation) applyRestrictions(restrictions []*restrictionmodels.Restriction, basis LegalBasis) {
	touchesPersonal := false
	for _, c := range e.classes {
		if c.Sensitive() {
			touchesPersonal = true
			break
		}
	}
	for _, r := range restrictions {
		if r == nil || !r.Active || r.Excepts(string(basis)) {
			continue
		}
		if r.CoversAll() {
			if !touchesPersonal {
				continue
			}
			for field := range e.classes {
				e.deny(field, ReasonRestrictedAll)
			}
			continue
		}
		for field, c := range e.classes {
			if c.Sensitive() && r.Covers(field, string(c)) {
				e.deny(field, ReasonRestricted)
			}
		}
	}
}

// applyRequired denies everything once a field the request cannot drop is
// denied. Filtering on a denied field would leak it through the result set.
func (e *evaluation) applyRequired(required []string) {
	for _, field := range required {
		if _, denied := e.denied[field]; denied {
			for f := range e.classes {
				e.deny(f, ReasonRequiredDenied)
			}
			return
		}
	}
}

// decide is step 5.
func (e *evaluation) decide(req Request, mode Mode) *Decision {
	d := &Decision{
		Purpose:    req.Purpose,
		LegalBasis: req.LegalBasis,
		Mode:       mode,
		Classes:    e.classes,
	}
	for _, field := range slices.Sorted(maps.Keys(e.classes)) {
		if code, denied := e.denied[field]; denied {
			d.DeniedFields = append(d.DeniedFields, field)
			d.Reasons = append(d.Reasons, Reason{Field: field, Code: code})
			continue
		}
		d.AllowedFields = append(d.AllowedFields, field)
		if code, flagged := e.flagged[field]; flagged {
			d.Reasons = append(d.Reasons, Reason{Field: field, Code: code})
		}
	}
	if d.AllowedFields == nil {
		d.AllowedFields = []string{}
	}
	if d.DeniedFields == nil {
		d.DeniedFields = []string{}
	}

	// Nothing allowed is a denial, including an empty field set.
	switch {
	case len(d.AllowedFields) == 0:
		d.Outcome = OutcomeDenied
	case len(d.DeniedFields) == 0:
		d.Outcome = OutcomeAllowed
	default:
		d.Outcome = OutcomePartiallyAllowed
	}
	return d
}
