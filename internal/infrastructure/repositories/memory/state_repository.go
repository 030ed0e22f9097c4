package memory

import (
	"context"
	"sync"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
)

type MemoryStateRepository struct {
	states map[domain.StreamID]*domain.StreamState
	mu     sync.RWMutex
}

func NewMemoryStateRepository() ports.StateRepository {
	return &MemoryStateRepository{
		states: make(map[domain.StreamID]*domain.StreamState),
	}
}

func (r *MemoryStateRepository) Create(ctx context.Context, state *domain.StreamState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.states[state.StreamID]; exists {
		return domain.ErrStreamExists
	}

	copied := *state
	r.states[state.StreamID] = &copied
	return nil
}

func (r *MemoryStateRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.StreamState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.states[id]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}

	copied := *state
	return &copied, nil
}

func (r *MemoryStateRepository) Update(ctx context.Context, state *domain.StreamState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.states[state.StreamID]; !exists {
		return domain.ErrStreamNotFound
	}

	copied := *state
	r.states[state.StreamID] = &copied
	return nil
}

func (r *MemoryStateRepository) Delete(ctx context.Context, id domain.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.states[id]; !exists {
		return domain.ErrStreamNotFound
	}

	delete(r.states, id)
	return nil
}

func (r *MemoryStateRepository) List(ctx context.Context) ([]*domain.StreamState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]*domain.StreamState, 0, len(r.states))
	for _, state := range r.states {
		copied := *state
		states = append(states, &copied)
	}
	return states, nil
}
