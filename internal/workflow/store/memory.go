// Package store persists approvable requests. Every status change goes
// through CompareAndSwap so that concurrent writers are linearized per
// request.
package store

import (
	"context"
	"sort"
	"sync"

	"housing/internal/workflow/models"
	"housing/pkg/domain"
	"housing/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded request store for development and tests.
type InMemory struct {
	mu       sync.RWMutex
	requests map[domain.RequestID]*models.Request
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[domain.RequestID]*models.Request)}
}

// Create stores a new request. A second open room booking for the same owner
// is rejected with sentinel.ErrConflict.
func (s *InMemory) Create(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrConflict
	}
	if req.IsOpenRoomBooking() {
		for _, other := range s.requests {
			if other.OwnerID == req.OwnerID && other.IsOpenRoomBooking() {
				return sentinel.ErrConflict
			}
		}
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *InMemory) Get(_ context.Context, id domain.RequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return req.Clone(), nil
}

// List returns matching requests, oldest first.
func (s *InMemory) List(_ context.Context, filter models.Filter) ([]*models.Request, error) {
	s.mu.RLock()
	out := make([]*models.Request, 0)
	for _, req := range s.requests {
		if filter.Matches(req) {
			out = append(out, req.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CompareAndSwap replaces the stored request with next only if it is still in
// expectedStatus at expectedVersion. On success next.Version is advanced.
func (s *InMemory) CompareAndSwap(_ context.Context, next *models.Request, expectedStatus models.Status, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[next.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if cur.Status != expectedStatus || cur.Version != expectedVersion {
		return sentinel.ErrStale
	}
	next.Version = expectedVersion + 1
	s.requests[next.ID] = next.Clone()
	return nil
}
