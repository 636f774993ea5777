package store

import (
	"context"
	"sort"
	"sync"

	"privata/internal/rights/models"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
)

// InMemoryStore keeps rights requests in memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[domain.RightsRequestID]*models.Request
}

// New constructs an empty in-memory rights request store.
func New() *InMemoryStore {
	return &InMemoryStore{byID: make(map[domain.RightsRequestID]*models.Request)}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.RightsRequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

// ListBySubject returns the subject's requests, newest first.
func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID domain.SubjectID) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Request
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
