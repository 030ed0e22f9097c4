package memory

import (
	"context"
	"sync"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
)

type MemorySessionRepository struct {
	sessions map[domain.StreamID]*domain.StreamSession
	mu       sync.RWMutex
}

func NewMemorySessionRepository() ports.SessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[domain.StreamID]*domain.StreamSession),
	}
}

func (r *MemorySessionRepository) Put(ctx context.Context, session *domain.StreamSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.StreamSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}

	copied := *session
	return &copied, nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id domain.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return domain.ErrStreamNotFound
	}

	delete(r.sessions, id)
	return nil
}

func (r *MemorySessionRepository) UpdateViewerCount(ctx context.Context, id domain.StreamID, viewers int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return domain.ErrStreamNotFound
	}

	session.ViewerCount = viewers
	return nil
}
