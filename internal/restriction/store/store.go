//go:generate mockgen -source=store.go -destination=../mocks/mocks.go -package=mocks Store,TxStore

package store

import (
	"context"

	"privata/internal/restriction/models"
	"privata/pkg/domain"
)

// Store persists restriction records. Get and Update return
// sentinel.ErrNotFound for unknown ids.
type Store interface {
	Insert(ctx context.Context, r *models.Restriction) error
	Update(ctx context.Context, r *models.Restriction) error
	Get(ctx context.Context, id domain.RestrictionID) (*models.Restriction, error)
	ActiveBySubject(ctx context.Context, subjectID domain.SubjectID) ([]*models.Restriction, error)
	ListBySubject(ctx context.Context, subjectID domain.SubjectID) ([]*models.Restriction, error)
}

// TxStore adds a transactional boundary: writes made by fn are discarded
// when fn returns an error.
type TxStore interface {
	Store
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}
