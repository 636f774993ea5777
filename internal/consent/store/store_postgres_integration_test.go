//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"privata/internal/consent/models"
	"privata/internal/consent/store"
	"privata/internal/storage"
	"privata/pkg/platform/sentinel"
	"privata/pkg/testutil"
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
	s.store = store.NewPostgres(s.postgres.DB, store.WithReplica(s.postgres.DB))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "consents"))
}

func (s *PostgresStoreSuite) TestInsertAndLatest() {
	ctx := context.Background()
	older := testutil.NewTestConsent(testutil.TestSubjects.Subject1, "marketing")
	older.GrantedAt = older.GrantedAt.Add(-time.Hour)
	newer := testutil.NewTestConsent(testutil.TestSubjects.Subject1, "marketing")
	newer.Details = map[string]any{"source": "web"}
	s.Require().NoError(s.store.Insert(ctx, older))
	s.Require().NoError(s.store.Insert(ctx, newer))

	for _, c := range []storage.Consistency{storage.ConsistencyEventual, storage.ConsistencyStrong} {
		got, err := s.store.Latest(ctx, testutil.TestSubjects.Subject1, "marketing", c)
		s.Require().NoError(err)
		s.Equal(newer.ID, got.ID)
		s.Equal("web", got.Details["source"])
		s.True(got.IsActive(time.Now()))
	}

	_, err := s.store.Latest(ctx, testutil.TestSubjects.Subject2, "marketing", storage.ConsistencyStrong)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateMissingRecord() {
	err := s.store.Update(context.Background(), testutil.NewTestConsent(testutil.TestSubjects.Subject1, "marketing"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListBySubjectNewestFirst() {
	ctx := context.Background()
	a := testutil.NewTestConsent(testutil.TestSubjects.Subject1, "a")
	a.GrantedAt = a.GrantedAt.Add(-time.Minute)
	b := testutil.NewTestConsent(testutil.TestSubjects.Subject1, "b")
	s.Require().NoError(s.store.Insert(ctx, a))
	s.Require().NoError(s.store.Insert(ctx, b))

	records, err := s.store.ListBySubject(ctx, testutil.TestSubjects.Subject1)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(models.Purpose("b"), records[0].Purpose)
}

func (s *PostgresStoreSuite) TestRunInTxRollsBackOnError() {
	ctx := context.Background()
	rec := testutil.NewTestConsent(testutil.TestSubjects.Subject1, "marketing")
	boom := errors.New("boom")

	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		if err := tx.Insert(ctx, rec); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.Latest(ctx, rec.SubjectID, rec.Purpose, storage.ConsistencyStrong)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentWithdrawalsSerialize checks that the row lock taken by
// Latest inside a transaction lets exactly one withdrawal win.
func (s *PostgresStoreSuite) TestConcurrentWithdrawalsSerialize() {
	ctx := context.Background()
	rec := testutil.NewTestConsent(testutil.TestSubjects.Subject1, "marketing")
	s.Require().NoError(s.store.Insert(ctx, rec))

	var withdrawn atomic.Int32
	res := testutil.RunConcurrent(20, func(_ int) error {
		return s.store.RunInTx(ctx, func(tx store.Store) error {
			latest, err := tx.Latest(ctx, rec.SubjectID, rec.Purpose, storage.ConsistencyStrong)
			if err != nil {
				return err
			}
			if latest.WithdrawnAt != nil {
				return nil
			}
			now := time.Now()
			latest.WithdrawnAt = &now
			if err := tx.Update(ctx, latest); err != nil {
				return err
			}
			withdrawn.Add(1)
			return nil
		})
	})
	s.Empty(res.Errors)
	s.Equal(int32(1), withdrawn.Load())
}
