package store

import (
	"context"
	"sort"
	"sync"

	"privata/internal/consent/models"
	"privata/internal/storage"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
)

// InMemoryStore keeps consent records in memory for tests and local runs.
type InMemoryStore struct {
	txMu     sync.Mutex
	mu       sync.RWMutex
	consents map[domain.SubjectID][]*models.Record
}

// New constructs an empty in-memory consent store.
func New() *InMemoryStore {
	return &InMemoryStore{consents: make(map[domain.SubjectID][]*models.Record)}
}

func (s *InMemoryStore) Insert(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.consents[record.SubjectID] {
		if existing.ID == record.ID {
			return sentinel.ErrConflict
		}
	}
	s.consents[record.SubjectID] = append(s.consents[record.SubjectID], record.Clone())
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.consents[record.SubjectID]
	for i, existing := range records {
		if existing.ID == record.ID {
			records[i] = record.Clone()
			return nil
		}
	}
	return sentinel.ErrNotFound
}

// Latest ignores consistency; memory reads are always current.
func (s *InMemoryStore) Latest(_ context.Context, subjectID domain.SubjectID, purpose models.Purpose, _ storage.Consistency) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Record
	for _, r := range s.consents[subjectID] {
		if r.Purpose != purpose {
			continue
		}
		if latest == nil || !r.GrantedAt.Before(latest.GrantedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest.Clone(), nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID domain.SubjectID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.consents[subjectID]
	out := make([]*models.Record, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GrantedAt.After(out[j].GrantedAt)
	})
	return out, nil
}

// RunInTx serializes transactions and restores a snapshot when fn fails.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snapshot)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *InMemoryStore) snapshot() map[domain.SubjectID][]*models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.SubjectID][]*models.Record, len(s.consents))
	for subject, records := range s.consents {
		copied := make([]*models.Record, len(records))
		for i, r := range records {
			copied[i] = r.Clone()
		}
		out[subject] = copied
	}
	return out
}

func (s *InMemoryStore) restore(snapshot map[domain.SubjectID][]*models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents = snapshot
}
