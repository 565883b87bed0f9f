package store

import (
	"context"
	"sync"

	"housing/internal/identity/models"
	"housing/pkg/domain"
	"housing/pkg/platform/sentinel"
)

// InMemory is the identity directory used when no database is configured.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[domain.IdentityID]models.Record
	byEmail map[string]domain.IdentityID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[domain.IdentityID]models.Record),
		byEmail: make(map[string]domain.IdentityID),
	}
}

func (s *InMemory) Create(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[rec.Email]; taken {
		return sentinel.ErrConflict
	}
	if _, taken := s.byID[rec.ID]; taken {
		return sentinel.ErrConflict
	}
	s.byID[rec.ID] = *rec
	s.byEmail[rec.Email] = rec.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.IdentityID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	rec := s.byID[id]
	return &rec, nil
}

// Delete removes a record and frees its email. Unknown ids are ignored.
func (s *InMemory) Delete(_ context.Context, id domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.byID[id]; ok {
		delete(s.byEmail, rec.Email)
		delete(s.byID, id)
	}
	return nil
}

// Execute loads the record, lets validate veto and mutate change it, and
// stores the result, all under one lock.
func (s *InMemory) Execute(_ context.Context, id domain.IdentityID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(&rec); err != nil {
		return nil, err
	}
	mutate(&rec)
	s.byID[id] = rec
	return &rec, nil
}
