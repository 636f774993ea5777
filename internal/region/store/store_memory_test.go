package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privata/internal/region/models"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "s1")
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))

	m := &models.Mapping{SubjectID: "s1", Region: domain.RegionEU}
	require.NoError(t, s.Put(ctx, m))
	m.Region = domain.RegionUS

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.RegionEU, got.Region, "store must not alias the caller's value")

	require.NoError(t, s.Put(ctx, &models.Mapping{SubjectID: "s1", Region: domain.RegionUK}))
	got, err = s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.RegionUK, got.Region)
}
