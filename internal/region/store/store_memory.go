package store

import (
	"context"
	"sync"

	"privata/internal/region/models"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
)

// InMemoryStore keeps region mappings in memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	mappings map[domain.SubjectID]models.Mapping
}

// New constructs an empty in-memory mapping store.
func New() *InMemoryStore {
	return &InMemoryStore{mappings: make(map[domain.SubjectID]models.Mapping)}
}

func (s *InMemoryStore) Get(_ context.Context, subjectID domain.SubjectID) (*models.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &m, nil
}

func (s *InMemoryStore) Put(_ context.Context, m *models.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[m.SubjectID] = *m
	return nil
}
