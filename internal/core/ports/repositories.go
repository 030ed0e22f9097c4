package ports

import (
	"context"

	"playgrid/internal/core/domain"
)

// StateRepository stores the authoritative StreamState records. The registry
// is its only writer; everything else reads through the registry.
type StateRepository interface {
	Create(ctx context.Context, state *domain.StreamState) error
	GetByID(ctx context.Context, id domain.StreamID) (*domain.StreamState, error)
	Update(ctx context.Context, state *domain.StreamState) error
	Delete(ctx context.Context, id domain.StreamID) error
	List(ctx context.Context) ([]*domain.StreamState, error)
}

// SessionRepository stores the caller-supplied session descriptors next to
// their states so snapshots can return titles and source URLs.
type SessionRepository interface {
	Put(ctx context.Context, session *domain.StreamSession) error
	GetByID(ctx context.Context, id domain.StreamID) (*domain.StreamSession, error)
	Delete(ctx context.Context, id domain.StreamID) error
	UpdateViewerCount(ctx context.Context, id domain.StreamID, viewers int) error
}
