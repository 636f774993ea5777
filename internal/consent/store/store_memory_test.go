package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privata/internal/consent/models"
	"privata/internal/storage"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
)

func record(subject domain.SubjectID, purpose models.Purpose, grantedAt time.Time) *models.Record {
	return &models.Record{
		ID:        domain.NewConsentID(),
		SubjectID: subject,
		Purpose:   purpose,
		Granted:   true,
		GrantedAt: grantedAt,
		ExpiresAt: grantedAt.Add(time.Hour),
	}
}

func TestInMemoryStoreLatestPicksNewestGrant(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	older := record("s1", "marketing", now.Add(-time.Minute))
	newer := record("s1", "marketing", now)
	require.NoError(t, s.Insert(ctx, newer))
	require.NoError(t, s.Insert(ctx, older))

	got, err := s.Latest(ctx, "s1", "marketing", storage.ConsistencyStrong)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	_, err = s.Latest(ctx, "s1", "analytics", storage.ConsistencyStrong)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := record("s1", "marketing", time.Now())
	require.NoError(t, s.Insert(ctx, rec))

	got, err := s.Latest(ctx, "s1", "marketing", storage.ConsistencyEventual)
	require.NoError(t, err)
	got.Granted = false

	again, err := s.Latest(ctx, "s1", "marketing", storage.ConsistencyEventual)
	require.NoError(t, err)
	assert.True(t, again.Granted)
}

func TestInMemoryStoreInsertDuplicateConflicts(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := record("s1", "marketing", time.Now())
	require.NoError(t, s.Insert(ctx, rec))
	assert.ErrorIs(t, s.Insert(ctx, rec), sentinel.ErrConflict)
}

func TestInMemoryStoreRunInTxRestoresOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	kept := record("s1", "marketing", time.Now())
	require.NoError(t, s.Insert(ctx, kept))
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(tx Store) error {
		require.NoError(t, tx.Insert(ctx, record("s1", "analytics", time.Now())))
		changed := kept.Clone()
		changed.Granted = false
		require.NoError(t, tx.Update(ctx, changed))
		return boom
	})
	require.ErrorIs(t, err, boom)

	records, err := s.ListBySubject(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Granted)
}

func TestInMemoryStoreRunInTxCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := New().RunInTx(ctx, func(Store) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
