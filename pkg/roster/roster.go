package roster

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mehdierdemdede/leadflow/pkg/langcode"
)

// ErrAgentNotFound is returned when the requested agent does not exist.
var ErrAgentNotFound = fmt.Errorf("agent not found")

// Agent is a human CRM user who can receive assigned leads.
type Agent struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email,omitempty"`
	Active            bool      `json:"active"`
	AutoAssignEnabled bool      `json:"auto_assign_enabled"`
	Languages         []string  `json:"languages"`
	DailyCapacity     int       `json:"daily_capacity"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SupportsLanguage reports whether the agent handles the given canonical
// language code.
func (a *Agent) SupportsLanguage(lang string) bool {
	return slices.Contains(a.Languages, lang)
}

func (a *Agent) clone() *Agent {
	cp := *a
	cp.Languages = slices.Clone(a.Languages)
	return &cp
}

// CreateParams holds the fields needed to register a new agent.
type CreateParams struct {
	Name              string
	Email             string
	Languages         []string
	DailyCapacity     int
	AutoAssignEnabled bool
}

// Patch describes a partial admin edit. Nil fields are left untouched; the
// whole patch is applied atomically.
type Patch struct {
	Name              *string
	Active            *bool
	AutoAssignEnabled *bool
	Languages         *[]string
	DailyCapacity     *int
}

// Store gives access to the agent roster. Only the assignment engine and the
// admin surface go through it.
type Store interface {
	Create(ctx context.Context, params CreateParams) (*Agent, error)
	Get(ctx context.Context, id string) (*Agent, error)
	List(ctx context.Context) ([]*Agent, error)
	ListActive(ctx context.Context) ([]*Agent, error)
	Update(ctx context.Context, id string, patch Patch) (*Agent, error)
}

// MemoryStore is an in-process Store. All reads return copies so callers can
// never mutate roster state behind the lock.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewMemoryStore creates an empty in-memory roster.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{agents: make(map[string]*Agent)}
}

// Create registers a new agent. Languages are canonicalized and capacity must
// be non-negative.
func (s *MemoryStore) Create(ctx context.Context, params CreateParams) (*Agent, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if params.DailyCapacity < 0 {
		return nil, fmt.Errorf("daily capacity must be non-negative")
	}

	langs, err := langcode.NormalizeAll(params.Languages)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	agent := &Agent{
		ID:                uuid.New().String(),
		Name:              params.Name,
		Email:             params.Email,
		Active:            true,
		AutoAssignEnabled: params.AutoAssignEnabled,
		Languages:         langs,
		DailyCapacity:     params.DailyCapacity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	s.mu.Lock()
	s.agents[agent.ID] = agent
	s.mu.Unlock()

	return agent.clone(), nil
}

// Get returns the agent with the given ID or ErrAgentNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return agent.clone(), nil
}

// List returns every agent sorted by ID for reproducible output.
func (s *MemoryStore) List(ctx context.Context) ([]*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a.clone())
	}
	slices.SortFunc(out, func(a, b *Agent) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// ListActive returns every active agent sorted by ID.
func (s *MemoryStore) ListActive(ctx context.Context) ([]*Agent, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, a := range all {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

// Update applies the patch atomically. Validation failures leave the agent
// unchanged. Lowering DailyCapacity below the current day's assigned count is
// allowed: it only blocks further auto-assignment until the next reset.
func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch) (*Agent, error) {
	var langs []string
	if patch.Languages != nil {
		var err error
		langs, err = langcode.NormalizeAll(*patch.Languages)
		if err != nil {
			return nil, err
		}
	}
	if patch.DailyCapacity != nil && *patch.DailyCapacity < 0 {
		return nil, fmt.Errorf("daily capacity must be non-negative")
	}
	if patch.Name != nil && *patch.Name == "" {
		return nil, fmt.Errorf("agent name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}

	if patch.Name != nil {
		agent.Name = *patch.Name
	}
	if patch.Active != nil {
		agent.Active = *patch.Active
	}
	if patch.AutoAssignEnabled != nil {
		agent.AutoAssignEnabled = *patch.AutoAssignEnabled
	}
	if patch.Languages != nil {
		agent.Languages = langs
	}
	if patch.DailyCapacity != nil {
		agent.DailyCapacity = *patch.DailyCapacity
	}
	agent.UpdatedAt = time.Now().UTC()

	return agent.clone(), nil
}
