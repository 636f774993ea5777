package adapters

import (
	"context"

	consentmodels "privata/internal/consent/models"
	consentservice "privata/internal/consent/service"
	"privata/internal/gate/ports"
	"privata/internal/storage"
	"privata/pkg/domain"
)

type consentChecker interface {
	Check(ctx context.Context, subjectID domain.SubjectID, purpose consentmodels.Purpose, opts ...consentservice.CheckOption) (bool, error)
}

// ConsentAdapter exposes the consent ledger through ports.ConsentLedger.
type ConsentAdapter struct {
	consent consentChecker
}

func NewConsentAdapter(consent consentChecker) ports.ConsentLedger {
	return &ConsentAdapter{consent: consent}
}

// Check maps strong onto a primary read of the ledger.
func (a *ConsentAdapter) Check(ctx context.Context, subjectID domain.SubjectID, purpose string, strong bool) (bool, error) {
	consistency := storage.ConsistencyEventual
	if strong {
		consistency = storage.ConsistencyStrong
	}
	return a.consent.Check(ctx, subjectID, consentmodels.Purpose(purpose), consentservice.WithConsistency(consistency))
}
