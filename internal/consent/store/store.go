//go:generate mockgen -source=store.go -destination=../mocks/mocks.go -package=mocks Store,TxStore

package store

import (
	"context"

	"privata/internal/consent/models"
	"privata/internal/storage"
	"privata/pkg/domain"
)

// Error Contract:
// - Latest, Update return sentinel.ErrNotFound when no record matches
// - infrastructure failures are returned wrapped, never swallowed
// - records handed in or out are copies; callers may mutate them freely

// Store persists consent records. A subject may hold several records per
// purpose; only the latest by GrantedAt is authoritative.
type Store interface {
	Insert(ctx context.Context, record *models.Record) error
	Update(ctx context.Context, record *models.Record) error
	Latest(ctx context.Context, subjectID domain.SubjectID, purpose models.Purpose, consistency storage.Consistency) (*models.Record, error)
	ListBySubject(ctx context.Context, subjectID domain.SubjectID) ([]*models.Record, error)
}

// TxStore runs fn against a transactional view of the store. Any error
// returned by fn discards every write fn made.
type TxStore interface {
	Store
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}
