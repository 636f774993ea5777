package store

import (
	"context"

	"privata/internal/rights/models"
	"privata/pkg/domain"
)

// Store persists rights requests. Get and Update return sentinel.ErrNotFound
// for unknown ids; Create returns sentinel.ErrConflict for a duplicate id.
type Store interface {
	Create(ctx context.Context, r *models.Request) error
	Update(ctx context.Context, r *models.Request) error
	Get(ctx context.Context, id domain.RightsRequestID) (*models.Request, error)
	ListBySubject(ctx context.Context, subjectID domain.SubjectID) ([]*models.Request, error)
}
