package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// AuditModelSuite covers filter matching, scroll cursors and retention.
//
// Justification: exports rely on the cursor ordering being total and stable,
// and retention dates are computed once at write time from this table.
type AuditModelSuite struct {
	suite.Suite
}

func TestAuditModelSuite(t *testing.T) {
	suite.Run(t, new(AuditModelSuite))
}

func (s *AuditModelSuite) TestFilterMatches() {
	ts := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	e := Event{
		ID: uuid.New(), Timestamp: ts, Action: ActionRead,
		EntityType: "patient", EntityID: "p-1", SubjectID: "user-123", UserID: "clinician-7",
	}

	s.Run("empty filter matches everything", func() {
		s.True(Filter{}.Matches(e))
	})

	s.Run("equality fields", func() {
		s.True(Filter{UserID: "clinician-7", Action: ActionRead, EntityType: "patient", EntityID: "p-1"}.Matches(e))
		s.False(Filter{Action: ActionUpdate}.Matches(e))
		s.False(Filter{EntityID: "p-2"}.Matches(e))
		s.False(Filter{SubjectID: "user-999"}.Matches(e))
	})

	s.Run("date range is inclusive on both ends", func() {
		from, to := ts, ts
		s.True(Filter{From: &from, To: &to}.Matches(e))

		later := ts.Add(time.Nanosecond)
		s.False(Filter{From: &later}.Matches(e))

		earlier := ts.Add(-time.Nanosecond)
		s.False(Filter{To: &earlier}.Matches(e))
	})
}

func (s *AuditModelSuite) TestCursor() {
	ts := time.Date(2026, 1, 10, 12, 0, 0, 123, time.UTC)
	a := Event{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), Timestamp: ts}
	b := Event{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), Timestamp: ts}
	c := Event{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Timestamp: ts.Add(time.Second)}

	s.Run("round trips through the opaque form", func() {
		decoded, err := DecodeCursor(CursorAfter(a).Encode())
		s.Require().NoError(err)
		s.True(decoded.Timestamp.Equal(ts))
		s.Equal(a.ID, decoded.ID)
	})

	s.Run("orders by timestamp then id", func() {
		cur := CursorAfter(a)
		s.False(cur.After(a))
		s.True(cur.After(b))
		s.True(cur.After(c))
		s.False(CursorAfter(c).After(b))
	})

	s.Run("rejects garbage", func() {
		_, err := DecodeCursor("%%%")
		s.Error(err)
		_, err = DecodeCursor("bm9waXBl")
		s.Error(err)
	})
}

func (s *AuditModelSuite) TestPageSize() {
	s.Equal(MaxPageSize, Page{}.Size())
	s.Equal(MaxPageSize, Page{Limit: 5000}.Size())
	s.Equal(50, Page{Limit: 50}.Size())
}

func (s *AuditModelSuite) TestRetentionPolicy() {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Run("defaults to seven years for every framework", func() {
		p := NewRetentionPolicy(nil)
		s.Equal(2555, p.Days(FrameworkGDPR))
		s.Equal(2555, p.Days(FrameworkHIPAA))
		s.Equal(ts.AddDate(0, 0, 2555), p.RetentionDate(FrameworkGDPR, ts))
	})

	s.Run("per-framework overrides", func() {
		p := NewRetentionPolicy(map[Framework]int{FrameworkHIPAA: 2190, FrameworkGDPR: 0})
		s.Equal(2190, p.Days(FrameworkHIPAA))
		s.Equal(2555, p.Days(FrameworkGDPR))
	})

	s.Run("zero value policy still answers", func() {
		var p RetentionPolicy
		s.Equal(DefaultRetentionDays, p.Days(Framework("CCPA")))
	})
}
