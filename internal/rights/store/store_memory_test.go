package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privata/internal/rights/models"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
)

func newRequest(subject domain.SubjectID, createdAt time.Time) *models.Request {
	return &models.Request{
		ID:        domain.NewRightsRequestID(),
		SubjectID: subject,
		Kind:      models.KindAccess,
		Status:    models.StatusPending,
		Steps:     []models.Step{{Name: "export:patient", Status: models.StepPending}},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemoryStoreRoundTripCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := newRequest("s1", time.Now())
	require.NoError(t, s.Create(ctx, r))
	assert.ErrorIs(t, s.Create(ctx, r), sentinel.ErrConflict)

	r.Steps[0].Status = models.StepCompleted
	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepPending, got.Steps[0].Status)

	got.Status = models.StatusCompleted
	require.NoError(t, s.Update(ctx, got))
	again, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, again.Status)
}

func TestMemoryStoreMissing(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Get(ctx, domain.NewRightsRequestID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, newRequest("s1", time.Now())), sentinel.ErrNotFound)
}

func TestMemoryStoreListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	older := newRequest("s1", base)
	newer := newRequest("s1", base.Add(time.Hour))
	require.NoError(t, s.Create(ctx, older))
	require.NoError(t, s.Create(ctx, newer))
	require.NoError(t, s.Create(ctx, newRequest("s2", base)))

	list, err := s.ListBySubject(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}
