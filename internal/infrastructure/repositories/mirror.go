package repositories

import (
	"context"

	"go.uber.org/zap"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
)

// mirroredStateRepository keeps the primary repository authoritative and
// copies every write into the mirror best-effort. Reads never touch the
// mirror, and a mirror failure is logged but never surfaced to the caller.
type mirroredStateRepository struct {
	primary ports.StateRepository
	mirror  ports.StateRepository
	logger  *zap.SugaredLogger
}

var _ ports.StateRepository = (*mirroredStateRepository)(nil)

func newMirroredStateRepository(primary, mirror ports.StateRepository, logger *zap.SugaredLogger) *mirroredStateRepository {
	return &mirroredStateRepository{primary: primary, mirror: mirror, logger: logger}
}

func (r *mirroredStateRepository) Create(ctx context.Context, state *domain.StreamState) error {
	if err := r.primary.Create(ctx, state); err != nil {
		return err
	}
	if err := r.mirror.Create(ctx, state); err != nil {
		r.logger.Warnw("state mirror create failed", "stream_id", state.StreamID, "error", err)
	}
	return nil
}

func (r *mirroredStateRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.StreamState, error) {
	return r.primary.GetByID(ctx, id)
}

func (r *mirroredStateRepository) Update(ctx context.Context, state *domain.StreamState) error {
	if err := r.primary.Update(ctx, state); err != nil {
		return err
	}
	if err := r.mirror.Update(ctx, state); err != nil {
		r.logger.Warnw("state mirror update failed", "stream_id", state.StreamID, "error", err)
	}
	return nil
}

func (r *mirroredStateRepository) Delete(ctx context.Context, id domain.StreamID) error {
	if err := r.primary.Delete(ctx, id); err != nil {
		return err
	}
	if err := r.mirror.Delete(ctx, id); err != nil {
		r.logger.Warnw("state mirror delete failed", "stream_id", id, "error", err)
	}
	return nil
}

func (r *mirroredStateRepository) List(ctx context.Context) ([]*domain.StreamState, error) {
	return r.primary.List(ctx)
}

// mirroredSessionRepository is the session-side counterpart.
type mirroredSessionRepository struct {
	primary ports.SessionRepository
	mirror  ports.SessionRepository
	logger  *zap.SugaredLogger
}

var _ ports.SessionRepository = (*mirroredSessionRepository)(nil)

func newMirroredSessionRepository(primary, mirror ports.SessionRepository, logger *zap.SugaredLogger) *mirroredSessionRepository {
	return &mirroredSessionRepository{primary: primary, mirror: mirror, logger: logger}
}

func (r *mirroredSessionRepository) Put(ctx context.Context, session *domain.StreamSession) error {
	if err := r.primary.Put(ctx, session); err != nil {
		return err
	}
	if err := r.mirror.Put(ctx, session); err != nil {
		r.logger.Warnw("session mirror put failed", "stream_id", session.ID, "error", err)
	}
	return nil
}

func (r *mirroredSessionRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.StreamSession, error) {
	return r.primary.GetByID(ctx, id)
}

func (r *mirroredSessionRepository) Delete(ctx context.Context, id domain.StreamID) error {
	if err := r.primary.Delete(ctx, id); err != nil {
		return err
	}
	if err := r.mirror.Delete(ctx, id); err != nil {
		r.logger.Warnw("session mirror delete failed", "stream_id", id, "error", err)
	}
	return nil
}

func (r *mirroredSessionRepository) UpdateViewerCount(ctx context.Context, id domain.StreamID, viewers int) error {
	if err := r.primary.UpdateViewerCount(ctx, id, viewers); err != nil {
		return err
	}
	if err := r.mirror.UpdateViewerCount(ctx, id, viewers); err != nil {
		r.logger.Warnw("session mirror viewer count failed", "stream_id", id, "error", err)
	}
	return nil
}
