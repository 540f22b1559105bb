package ticket

import (
	"context"
	"sync"
	"time"

	"opendesk.org/internal/auth"
	"opendesk.org/internal/ids"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore implements Store with in-process concurrency safety.
type InMemoryStore struct {
	mu      sync.RWMutex
	tickets map[string]*Ticket
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tickets: make(map[string]*Ticket)}
}

func (s *InMemoryStore) Create(ctx context.Context, t *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = ids.New()
	}
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *InMemoryStore) Find(ctx context.Context, id string) (*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryStore) ListByOrg(ctx context.Context, orgID string) ([]*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Ticket
	for _, t := range s.tickets {
		if t.OrganizationID == orgID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Update(ctx context.Context, id string, upd Update) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if upd.Subject != nil {
		t.Subject = *upd.Subject
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.AssignedTo != nil {
		t.AssignedTo = *upd.AssignedTo
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, nil
}
