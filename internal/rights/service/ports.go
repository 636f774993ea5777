//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks DataAccess,Consent,Restrictor,Tokens,Enqueuer

package service

import (
	"context"
	"time"

	consentmodels "privata/internal/consent/models"
	restrictionmodels "privata/internal/restriction/models"
	restrictionservice "privata/internal/restriction/service"
	"privata/internal/storage"
	"privata/pkg/domain"
)

// DataAccess is the privileged side of the data access engine.
type DataAccess interface {
	SubjectRecords(ctx context.Context, subjectID domain.SubjectID, model string) ([]storage.Record, error)
	EraseSubject(ctx context.Context, subjectID domain.SubjectID, model string) (int, error)
	Rectify(ctx context.Context, subjectID domain.SubjectID, model, id string, corrections storage.Record) (storage.Record, error)
	Models() []string
}

// Consent withdraws consent on behalf of the subject.
type Consent interface {
	Withdraw(ctx context.Context, subjectID domain.SubjectID, purpose consentmodels.Purpose) error
	WithdrawAll(ctx context.Context, subjectID domain.SubjectID) (int, error)
}

// Restrictor applies processing restrictions.
type Restrictor interface {
	Restrict(ctx context.Context, in restrictionservice.RestrictInput) (*restrictionmodels.Restriction, error)
}

// Tokens signs and checks portability download tokens.
type Tokens interface {
	GenerateDownloadToken(requestID, subjectID string, ttl time.Duration) (string, time.Time, error)
	ValidateDownloadToken(token string) (requestID, subjectID string, err error)
}

// Enqueuer schedules asynchronous execution of a request.
type Enqueuer interface {
	EnqueueExecute(ctx context.Context, id domain.RightsRequestID) error
}
