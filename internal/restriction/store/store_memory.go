package store

import (
	"context"
	"sort"
	"sync"

	"privata/internal/restriction/models"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
)

// InMemoryStore keeps restrictions in memory.
type InMemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	byID map[domain.RestrictionID]*models.Restriction
}

// New constructs an empty in-memory restriction store.
func New() *InMemoryStore {
	return &InMemoryStore{byID: make(map[domain.RestrictionID]*models.Restriction)}
}

func (s *InMemoryStore) Insert(_ context.Context, r *models.Restriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, r *models.Restriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.RestrictionID) (*models.Restriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) ActiveBySubject(ctx context.Context, subjectID domain.SubjectID) ([]*models.Restriction, error) {
	all, err := s.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, r := range all {
		if r.Active {
			active = append(active, r)
		}
	}
	return active, nil
}

// ListBySubject returns the subject's restrictions, newest first.
func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID domain.SubjectID) ([]*models.Restriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Restriction
	for _, r := range s.byID {
		if r.SubjectID == subjectID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
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

	s.mu.RLock()
	snapshot := make(map[domain.RestrictionID]*models.Restriction, len(s.byID))
	for id, r := range s.byID {
		snapshot[id] = r.Clone()
	}
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.byID = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}
