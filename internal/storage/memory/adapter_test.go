package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"privata/internal/storage"
	"privata/pkg/platform/sentinel"
)

// AdapterSuite covers the in-memory adapter against the storage contract.
// Justification: engine and rights tests run on this adapter, so its
// transaction isolation must match the real stores.
type AdapterSuite struct {
	suite.Suite
	ctx context.Context
	a   *Adapter
}

func TestAdapterSuite(t *testing.T) {
	suite.Run(t, new(AdapterSuite))
}

func (s *AdapterSuite) SetupTest() {
	s.ctx = context.Background()
	s.a = New()
}

func (s *AdapterSuite) seed(id string, data storage.Record) {
	data[storage.FieldID] = id
	_, err := s.a.Create(s.ctx, "patient", data, storage.Options{})
	s.Require().NoError(err)
}

func (s *AdapterSuite) TestCreateAssignsIDAndFind() {
	r, err := s.a.Create(s.ctx, "patient", storage.Record{"name": "Ada"}, storage.Options{})
	s.Require().NoError(err)
	s.NotEmpty(r.ID())

	got, err := s.a.FindByID(s.ctx, "patient", r.ID(), storage.Options{})
	s.Require().NoError(err)
	s.Equal("Ada", got["name"])
}

func (s *AdapterSuite) TestCreateDuplicateConflicts() {
	s.seed("p1", storage.Record{})
	_, err := s.a.Create(s.ctx, "patient", storage.Record{"id": "p1"}, storage.Options{})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *AdapterSuite) TestFindByIDProjectsFields() {
	s.seed("p1", storage.Record{"name": "Ada", "email": "ada@example.com"})
	got, err := s.a.FindByID(s.ctx, "patient", "p1", storage.Options{Fields: []string{"name"}})
	s.Require().NoError(err)
	s.Equal(storage.Record{"id": "p1", "name": "Ada"}, got)
}

func (s *AdapterSuite) TestUpdateMergesAndNotFound() {
	s.seed("p1", storage.Record{"name": "Ada", "email": "a@x"})
	got, err := s.a.Update(s.ctx, "patient", "p1", storage.Record{"email": nil}, storage.Options{})
	s.Require().NoError(err)
	s.Equal("Ada", got["name"])
	s.Nil(got["email"])

	_, err = s.a.Update(s.ctx, "patient", "missing", storage.Record{}, storage.Options{})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *AdapterSuite) TestDelete() {
	s.seed("p1", storage.Record{})
	s.Require().NoError(s.a.Delete(s.ctx, "patient", "p1", storage.Options{}))
	s.ErrorIs(s.a.Delete(s.ctx, "patient", "p1", storage.Options{}), sentinel.ErrNotFound)
}

func (s *AdapterSuite) TestFindManyFiltersSortsPages() {
	s.seed("p1", storage.Record{"age": 30, "country": "DE"})
	s.seed("p2", storage.Record{"age": 45, "country": "US"})
	s.seed("p3", storage.Record{"age": 52, "country": "DE"})

	got, err := s.a.FindMany(s.ctx, storage.Query{
		Model:  "patient",
		Where:  storage.Or(storage.Eq("country", "US"), storage.Cond("age", storage.OpGte, 50)),
		Sort:   []storage.Sort{{Field: "age", Desc: true}},
		Select: []string{"age"},
	}, storage.Options{})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("p3", got[0].ID())
	s.Equal("p2", got[1].ID())
	s.NotContains(got[0], "country")

	got, err = s.a.FindMany(s.ctx, storage.Query{Model: "patient", Limit: 1, Offset: 1}, storage.Options{})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("p2", got[0].ID())
}

func (s *AdapterSuite) TestTxCommitPublishesWrites() {
	tx, err := s.a.Begin(s.ctx, storage.Options{})
	s.Require().NoError(err)
	_, err = tx.Create(s.ctx, "patient", storage.Record{"id": "p1"}, storage.Options{})
	s.Require().NoError(err)

	_, err = s.a.FindByID(s.ctx, "patient", "p1", storage.Options{})
	s.ErrorIs(err, sentinel.ErrNotFound, "uncommitted write must not be visible")

	_, err = tx.FindByID(s.ctx, "patient", "p1", storage.Options{})
	s.NoError(err)

	s.Require().NoError(tx.Commit(s.ctx))
	_, err = s.a.FindByID(s.ctx, "patient", "p1", storage.Options{})
	s.NoError(err)
}

func (s *AdapterSuite) TestRunInTxRollsBackOnError() {
	boom := errors.New("boom")
	err := storage.RunInTx(s.ctx, s.a, storage.Options{}, func(tx storage.Tx) error {
		if _, err := tx.Create(s.ctx, "patient", storage.Record{"id": "p1"}, storage.Options{}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)
	s.Zero(s.a.Len("patient"))
}

func (s *AdapterSuite) TestRunInTxCancelledContextDoesNotCommit() {
	ctx, cancel := context.WithCancel(s.ctx)
	err := storage.RunInTx(ctx, s.a, storage.Options{}, func(tx storage.Tx) error {
		_, err := tx.Create(ctx, "patient", storage.Record{"id": "p1"}, storage.Options{})
		cancel()
		return err
	})
	s.ErrorIs(err, context.Canceled)
	s.Zero(s.a.Len("patient"))
}

func (s *AdapterSuite) TestFinishedTxRejectsUse() {
	tx, err := s.a.Begin(s.ctx, storage.Options{})
	s.Require().NoError(err)
	s.Require().NoError(tx.Rollback(s.ctx))
	_, err = tx.FindByID(s.ctx, "patient", "p1", storage.Options{})
	s.ErrorIs(err, sentinel.ErrInvalidState)
}
