package store

import (
	"context"

	"privata/internal/region/models"
	"privata/pkg/domain"
)

// Store is the authoritative subject-to-region mapping. Get returns
// sentinel.ErrNotFound when no mapping is recorded; Put upserts.
type Store interface {
	Get(ctx context.Context, subjectID domain.SubjectID) (*models.Mapping, error)
	Put(ctx context.Context, m *models.Mapping) error
}
