//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"privata/internal/restriction/models"
	"privata/internal/restriction/store"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
	"privata/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "restrictions"))
}

func newRestriction(subject domain.SubjectID) *models.Restriction {
	return &models.Restriction{
		ID:             domain.NewRestrictionID(),
		SubjectID:      subject,
		Scope:          models.ScopeSpecificCategories,
		DataCategories: []string{"PHI", "email"},
		Exceptions:     []string{"legal_obligation"},
		Active:         true,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestArraysRoundTrip() {
	ctx := context.Background()
	r := newRestriction("s1")
	s.Require().NoError(s.store.Insert(ctx, r))

	got, err := s.store.Get(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal([]string{"PHI", "email"}, got.DataCategories)
	s.Equal([]string{"legal_obligation"}, got.Exceptions)
	s.True(got.Covers("diagnosis", "PHI"))
}

func (s *PostgresStoreSuite) TestActiveBySubjectExcludesLifted() {
	ctx := context.Background()
	active := newRestriction("s1")
	lifted := newRestriction("s1")
	s.Require().NoError(s.store.Insert(ctx, active))
	s.Require().NoError(s.store.Insert(ctx, lifted))

	now := time.Now()
	lifted.Active = false
	lifted.LiftedAt = &now
	s.Require().NoError(s.store.Update(ctx, lifted))

	got, err := s.store.ActiveBySubject(ctx, "s1")
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(active.ID, got[0].ID)

	all, err := s.store.ListBySubject(ctx, "s1")
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *PostgresStoreSuite) TestRunInTxRollsBack() {
	ctx := context.Background()
	r := newRestriction("s1")
	boom := errors.New("boom")
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		s.Require().NoError(tx.Insert(ctx, r))
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.Get(ctx, r.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
