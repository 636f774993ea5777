package testutil

import (
	"time"

	consentmodels "privata/internal/consent/models"
	"privata/pkg/domain"
)

// TestSubjects provides deterministic subject ids for tests.
var TestSubjects = struct {
	Subject1 domain.SubjectID
	Subject2 domain.SubjectID
}{
	Subject1: "subject-0001",
	Subject2: "subject-0002",
}

// NewTestConsent returns an active grant for purpose that expires in a year.
func NewTestConsent(subjectID domain.SubjectID, purpose consentmodels.Purpose) *consentmodels.Record {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &consentmodels.Record{
		ID:        domain.NewConsentID(),
		SubjectID: subjectID,
		Purpose:   purpose,
		Granted:   true,
		GrantedAt: now,
		ExpiresAt: now.Add(365 * 24 * time.Hour),
	}
}
