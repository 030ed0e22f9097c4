package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
	"playgrid/pkg/validation"
)

// RegistryService is the single source of truth for per-stream state. All
// mutation is serialized behind one mutex so the pool, mixer and recovery
// coordinator never observe a stream mid-update, and every cross-component
// reaction (suspension, audio rebalance, event publication) happens strictly
// after the triggering change is committed to the repository.
type RegistryService struct {
	states    ports.StateRepository
	sessions  ports.SessionRepository
	pool      ports.SurfacePool
	mixer     ports.AudioMixer
	publisher ports.EventPublisher
	metrics   ports.MetricsSink
	logger    *zap.SugaredLogger

	mu sync.Mutex

	// pauseStream is invoked when a stream must leave playing for a reason
	// the registry itself detects (visibility loss, bulk pause). Set by the
	// engine manager after construction.
	pauseStream  func(ctx context.Context, id domain.StreamID)
	resumeStream func(ctx context.Context, id domain.StreamID)
}

var _ ports.StreamRegistry = (*RegistryService)(nil)

func NewRegistryService(
	states ports.StateRepository,
	sessions ports.SessionRepository,
	pool ports.SurfacePool,
	mixer ports.AudioMixer,
	publisher ports.EventPublisher,
	metrics ports.MetricsSink,
	logger *zap.SugaredLogger,
) *RegistryService {
	return &RegistryService{
		states:    states,
		sessions:  sessions,
		pool:      pool,
		mixer:     mixer,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// SetTransportHooks wires the playback-side callbacks the registry uses when
// a state rule forces a transport action.
func (r *RegistryService) SetTransportHooks(pause, resume func(ctx context.Context, id domain.StreamID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseStream = pause
	r.resumeStream = resume
}

// RegisterStream creates the state record for a session. The first stream
// registered becomes focused.
func (r *RegistryService) RegisterStream(ctx context.Context, session *domain.StreamSession) (*domain.StreamState, error) {
	if err := validation.ValidateSession(session); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSession, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.states.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	for _, state := range existing {
		if state.StreamID == session.ID {
			return nil, domain.ErrStreamExists
		}
	}

	quality := session.RequestedQuality
	if quality == "" {
		quality = domain.QualityAuto
	}

	state := &domain.StreamState{
		StreamID:       session.ID,
		PlaybackState:  domain.StateIdle,
		IsVisible:      true,
		IsFocused:      len(existing) == 0,
		Volume:         1.0,
		CurrentQuality: quality,
		QualityPinned:  quality != domain.QualityAuto,
		LastUpdated:    time.Now(),
	}

	if err := r.sessions.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	if err := r.states.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to create state: %w", err)
	}

	r.mixer.RegisterStream(session.ID, state.Volume)
	if state.IsFocused {
		r.mixer.SetFocusedStream(session.ID)
		r.pool.MarkFocused(session.ID)
	}

	r.metrics.StreamRegistered(session.Platform)
	r.logger.Infow("stream registered",
		"stream_id", session.ID,
		"platform", session.Platform,
		"focused", state.IsFocused,
	)

	copied := *state
	return &copied, nil
}

// UnregisterStream removes a stream's state, session and audio channel.
func (r *RegistryService) UnregisterStream(ctx context.Context, id domain.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(ctx, id)
}

func (r *RegistryService) unregisterLocked(ctx context.Context, id domain.StreamID) error {
	session, err := r.sessions.GetByID(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrStreamNotFound) {
		return err
	}

	if err := r.states.Delete(ctx, id); err != nil {
		return err
	}
	if err := r.sessions.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrStreamNotFound) {
		return err
	}

	r.mixer.UnregisterStream(id)

	// The mixer may have reassigned focus to a surviving stream; mirror
	// that into the state records.
	if focusedID, ok := r.mixer.FocusedStream(); ok {
		if state, err := r.states.GetByID(ctx, focusedID); err == nil && !state.IsFocused {
			state.IsFocused = true
			state.LastUpdated = time.Now()
			if err := r.states.Update(ctx, state); err != nil {
				r.logger.Warnw("failed to persist reassigned focus", "stream_id", focusedID, "error", err)
			} else {
				r.pool.MarkFocused(focusedID)
				r.publishLocked(ctx, domain.EngineEvent{
					Type:     domain.EngineEventFocusChanged,
					StreamID: focusedID,
				})
			}
		}
	}

	if session != nil {
		r.metrics.StreamUnregistered(session.Platform)
	}
	r.logger.Infow("stream unregistered", "stream_id", id)
	return nil
}

// SetActiveStream moves focus to the given stream, suspends every other
// surface and rebalances audio.
func (r *RegistryService) SetActiveStream(ctx context.Context, id domain.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, err := r.states.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if target.IsFocused {
		return nil
	}

	states, err := r.states.List(ctx)
	if err != nil {
		return err
	}
	for _, state := range states {
		if state.IsFocused && state.StreamID != id {
			state.IsFocused = false
			state.LastUpdated = time.Now()
			if err := r.states.Update(ctx, state); err != nil {
				return fmt.Errorf("failed to clear previous focus: %w", err)
			}
		}
	}

	target.IsFocused = true
	target.LastUpdated = time.Now()
	if err := r.states.Update(ctx, target); err != nil {
		return err
	}

	r.pool.MarkFocused(id)
	r.pool.SuspendAllExcept(ctx, id)
	r.mixer.SetFocusedStream(id)

	r.publishLocked(ctx, domain.EngineEvent{
		Type:     domain.EngineEventFocusChanged,
		StreamID: id,
	})
	return nil
}

// UpdateVisibility records visibility. A stream leaving the viewport is
// paused to reclaim resources; becoming visible again does not auto-resume.
func (r *RegistryService) UpdateVisibility(ctx context.Context, id domain.StreamID, visible bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.states.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if state.IsVisible == visible {
		return nil
	}

	state.IsVisible = visible
	state.LastUpdated = time.Now()
	if err := r.states.Update(ctx, state); err != nil {
		return err
	}
	r.pool.MarkVisible(id, visible)

	if !visible && state.PlaybackState == domain.StatePlaying && r.pauseStream != nil {
		r.pauseStream(ctx, id)
	}
	return nil
}

// PauseAllStreams pauses every stream currently playing. Idempotent.
func (r *RegistryService) PauseAllStreams(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	states, err := r.states.List(ctx)
	if err != nil {
		return err
	}
	for _, state := range states {
		if state.PlaybackState == domain.StatePlaying && r.pauseStream != nil {
			r.pauseStream(ctx, state.StreamID)
		}
	}
	return nil
}

// ResumeAllStreams resumes every visible paused stream. Idempotent.
func (r *RegistryService) ResumeAllStreams(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	states, err := r.states.List(ctx)
	if err != nil {
		return err
	}
	for _, state := range states {
		if state.PlaybackState == domain.StatePaused && state.IsVisible && r.resumeStream != nil {
			r.resumeStream(ctx, state.StreamID)
		}
	}
	return nil
}

// Cleanup unregisters every stream and resets the mixer. Safe to call
// multiple times.
func (r *RegistryService) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	states, err := r.states.List(ctx)
	if err != nil {
		return err
	}
	for _, state := range states {
		if err := r.unregisterLocked(ctx, state.StreamID); err != nil {
			r.logger.Warnw("cleanup failed to unregister stream", "stream_id", state.StreamID, "error", err)
		}
	}
	r.mixer.Reset()
	return nil
}

func (r *RegistryService) GetState(ctx context.Context, id domain.StreamID) (*domain.StreamState, error) {
	return r.states.GetByID(ctx, id)
}

func (r *RegistryService) GetSession(ctx context.Context, id domain.StreamID) (*domain.StreamSession, error) {
	return r.sessions.GetByID(ctx, id)
}

func (r *RegistryService) ListStates(ctx context.Context) ([]*domain.StreamState, error) {
	return r.states.List(ctx)
}

func (r *RegistryService) Exists(ctx context.Context, id domain.StreamID) bool {
	_, err := r.states.GetByID(ctx, id)
	return err == nil
}

// SetPlaybackState applies a state-machine transition. Illegal transitions
// are rejected; a transition to playing while invisible is downgraded to
// paused to preserve the visibility invariant.
func (r *RegistryService) SetPlaybackState(ctx context.Context, id domain.StreamID, next domain.PlaybackState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.states.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if state.PlaybackState == next {
		return nil
	}
	if !state.PlaybackState.CanTransitionTo(next) {
		return fmt.Errorf("illegal playback transition %s -> %s for stream %s", state.PlaybackState, next, id)
	}
	if next == domain.StatePlaying && !state.IsVisible {
		r.logger.Warnw("invisible stream reported playing, holding paused", "stream_id", id)
		next = domain.StatePaused
	}

	state.PlaybackState = next
	state.LastUpdated = time.Now()
	if err := r.states.Update(ctx, state); err != nil {
		return err
	}

	r.pool.MarkPlaying(id, next == domain.StatePlaying)
	r.metrics.PlaybackStateChanged(id, next)

	r.publishLocked(ctx, domain.EngineEvent{
		Type:     domain.EngineEventStateChanged,
		StreamID: id,
		State:    next,
	})
	return nil
}

func (r *RegistryService) SetVolume(ctx context.Context, id domain.StreamID, volume float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.states.GetByID(ctx, id)
	if err != nil {
		return err
	}
	state.Volume = domain.ClampVolume(volume)
	state.LastUpdated = time.Now()
	if err := r.states.Update(ctx, state); err != nil {
		return err
	}
	r.mixer.SetStreamVolume(id, state.Volume)
	return nil
}

func (r *RegistryService) SetMuted(ctx context.Context, id domain.StreamID, muted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.states.GetByID(ctx, id)
	if err != nil {
		return err
	}
	state.IsMuted = muted
	state.LastUpdated = time.Now()
	if err := r.states.Update(ctx, state); err != nil {
		return err
	}
	r.mixer.SetStreamMuted(id, muted)
	return nil
}

// SetQuality records the level in effect. A manual change also updates the
// pin: choosing a concrete level pins the stream, returning to auto unpins
// it. Adaptive changes leave the pin alone so an auto stream stays eligible
// for future upgrades.
func (r *RegistryService) SetQuality(ctx context.Context, id domain.StreamID, quality domain.QualityLevel, manual bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.states.GetByID(ctx, id)
	if err != nil {
		return err
	}
	state.CurrentQuality = quality
	if manual {
		state.QualityPinned = quality != domain.QualityAuto
	}
	state.LastUpdated = time.Now()
	return r.states.Update(ctx, state)
}

func (r *RegistryService) UpdateViewerCount(ctx context.Context, id domain.StreamID, viewers int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.sessions.UpdateViewerCount(ctx, id, viewers); err != nil {
		return err
	}
	r.publishLocked(ctx, domain.EngineEvent{
		Type:        domain.EngineEventViewerCountUpdate,
		StreamID:    id,
		ViewerCount: viewers,
	})
	return nil
}

func (r *RegistryService) publishLocked(ctx context.Context, event domain.EngineEvent) {
	if r.publisher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	r.publisher.Publish(ctx, event)
}
