// Package ports declares what the gate needs from the rest of the system.
package ports

import (
	"context"

	restrictionmodels "privata/internal/restriction/models"
	"privata/internal/schema"
	"privata/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks Classifier,ConsentLedger,RestrictionProvider

// Classifier maps fields to sensitivity classes. Unregistered models fail
// with unknown_model.
type Classifier interface {
	Classify(model string, fields []string) (map[string]schema.Class, error)
}

// ConsentLedger answers whether the latest consent for (subject, purpose) is
// active. strong requests a primary read.
type ConsentLedger interface {
	Check(ctx context.Context, subjectID domain.SubjectID, purpose string, strong bool) (bool, error)
}

// RestrictionProvider returns the subject's active processing restrictions.
type RestrictionProvider interface {
	Active(ctx context.Context, subjectID domain.SubjectID) ([]*restrictionmodels.Restriction, error)
}
