package leads

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Store gives access to the lead catalog. Assignment pointers are written only
// through SetAssignment/ClearAssignment so the engine stays the single writer.
type Store interface {
	Put(ctx context.Context, lead *Lead) error
	Get(ctx context.Context, id string) (*Lead, error)
	List(ctx context.Context) ([]*Lead, error)
	ListUnassigned(ctx context.Context) ([]*Lead, error)
	ListAssignedTo(ctx context.Context, agentID string) ([]*Lead, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Lead, error)
	// SetAssignment commits ownership only when the lead's current owner
	// still matches prevAgentID (nil for an unowned lead); otherwise it
	// returns ErrOwnerChanged so the caller can roll back its ledger slot.
	SetAssignment(ctx context.Context, id, agentID, day string, prevAgentID *string) (*Lead, error)
	// ClearAssignment is conditional the same way: it releases ownership
	// only while prevAgentID still owns the lead.
	ClearAssignment(ctx context.Context, id string, prevAgentID *string) (*Lead, error)
}

// MemoryStore is an in-process Store returning defensive copies.
type MemoryStore struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

// NewMemoryStore creates an empty in-memory lead store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leads: make(map[string]*Lead)}
}

func sameOwner(current, expected *string) bool {
	if current == nil || expected == nil {
		return current == nil && expected == nil
	}
	return *current == *expected
}

func cloneLead(l *Lead) *Lead {
	cp := *l
	if l.AssignedAgentID != nil {
		v := *l.AssignedAgentID
		cp.AssignedAgentID = &v
	}
	if l.AssignedDay != nil {
		v := *l.AssignedDay
		cp.AssignedDay = &v
	}
	return &cp
}

// Put inserts or replaces a lead.
func (s *MemoryStore) Put(ctx context.Context, lead *Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[lead.ID] = cloneLead(lead)
	return nil
}

// Get returns the lead with the given ID or ErrLeadNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return cloneLead(lead), nil
}

// List returns all leads sorted by creation time, then ID.
func (s *MemoryStore) List(ctx context.Context) ([]*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Lead, 0, len(s.leads))
	for _, l := range s.leads {
		out = append(out, cloneLead(l))
	}
	slices.SortFunc(out, func(a, b *Lead) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// ListUnassigned returns leads with no current owner.
func (s *MemoryStore) ListUnassigned(ctx context.Context) ([]*Lead, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, l := range all {
		if !l.Assigned() {
			out = append(out, l)
		}
	}
	return out, nil
}

// ListAssignedTo returns leads currently owned by the given agent.
func (s *MemoryStore) ListAssignedTo(ctx context.Context, agentID string) ([]*Lead, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, l := range all {
		if l.AssignedAgentID != nil && *l.AssignedAgentID == agentID {
			out = append(out, l)
		}
	}
	return out, nil
}

// UpdateStatus moves the lead to a new lifecycle status.
func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status Status) (*Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	lead.Status = status
	lead.UpdatedAt = time.Now().UTC()
	return cloneLead(lead), nil
}

// SetAssignment records the lead's owner and the ledger day bucket the
// assignment was counted against. The write is conditional on the expected
// current owner, so two racing assignments cannot both commit.
func (s *MemoryStore) SetAssignment(ctx context.Context, id, agentID, day string, prevAgentID *string) (*Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	if !sameOwner(lead.AssignedAgentID, prevAgentID) {
		return nil, ErrOwnerChanged
	}
	lead.AssignedAgentID = &agentID
	lead.AssignedDay = &day
	lead.UpdatedAt = time.Now().UTC()
	return cloneLead(lead), nil
}

// ClearAssignment removes the lead's owner when prevAgentID still holds it.
// Clearing an unowned lead with a nil expectation is a no-op.
func (s *MemoryStore) ClearAssignment(ctx context.Context, id string, prevAgentID *string) (*Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	if !sameOwner(lead.AssignedAgentID, prevAgentID) {
		return nil, ErrOwnerChanged
	}
	lead.AssignedAgentID = nil
	lead.AssignedDay = nil
	lead.UpdatedAt = time.Now().UTC()
	return cloneLead(lead), nil
}
