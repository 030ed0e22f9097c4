package ports

import (
	"context"
	"time"

	"playgrid/internal/core/domain"
)

// StreamRegistry is the single source of truth for per-stream state. Every
// component reads and writes stream status through it.
type StreamRegistry interface {
	RegisterStream(ctx context.Context, session *domain.StreamSession) (*domain.StreamState, error)
	UnregisterStream(ctx context.Context, id domain.StreamID) error
	SetActiveStream(ctx context.Context, id domain.StreamID) error
	UpdateVisibility(ctx context.Context, id domain.StreamID, visible bool) error
	PauseAllStreams(ctx context.Context) error
	ResumeAllStreams(ctx context.Context) error
	Cleanup(ctx context.Context) error

	GetState(ctx context.Context, id domain.StreamID) (*domain.StreamState, error)
	GetSession(ctx context.Context, id domain.StreamID) (*domain.StreamSession, error)
	ListStates(ctx context.Context) ([]*domain.StreamState, error)
	Exists(ctx context.Context, id domain.StreamID) bool

	SetPlaybackState(ctx context.Context, id domain.StreamID, state domain.PlaybackState) error
	SetVolume(ctx context.Context, id domain.StreamID, volume float64) error
	SetMuted(ctx context.Context, id domain.StreamID, muted bool) error
	SetQuality(ctx context.Context, id domain.StreamID, quality domain.QualityLevel, manual bool) error
	UpdateViewerCount(ctx context.Context, id domain.StreamID, viewers int) error
}

// AudioMixer computes and pushes effective per-stream output volumes under
// focus, ducking and multi-stream attenuation.
type AudioMixer interface {
	RegisterStream(id domain.StreamID, initialVolume float64)
	UnregisterStream(id domain.StreamID)
	SetFocusedStream(id domain.StreamID)
	ClearFocus()
	FocusedStream() (domain.StreamID, bool)

	SetStreamVolume(id domain.StreamID, volume float64)
	SetStreamMuted(id domain.StreamID, muted bool)
	SetMasterVolume(volume float64)
	HandleVolumeButtonPress(increase bool)

	BeginInterruption()
	EndInterruption()
	HandleRouteChange(outputLost bool)

	EffectiveVolume(id domain.StreamID) float64
	ActiveCount() int
	Reset()
}

// RecoveryCoordinator turns observed failures into bounded retry plans.
type RecoveryCoordinator interface {
	RecoverFromError(ctx context.Context, id domain.StreamID, platform domain.Platform, kind domain.ErrorKind, originalURL string) domain.RecoveryResult
	CancelRecovery(id domain.StreamID)
	ResetAttempt(id domain.StreamID)
	Close()
}

// PlaybackService is the caller-facing transport control surface, one
// operation set per registered stream.
type PlaybackService interface {
	LoadStream(ctx context.Context, session *domain.StreamSession) error
	Play(ctx context.Context, id domain.StreamID) error
	Pause(ctx context.Context, id domain.StreamID) error
	SetVolume(ctx context.Context, id domain.StreamID, volume float64) error
	SetMuted(ctx context.Context, id domain.StreamID, muted bool) error
	SetQuality(ctx context.Context, id domain.StreamID, level domain.QualityLevel, isAdaptive bool) error
	Retry(ctx context.Context, id domain.StreamID) error
	CloseStream(ctx context.Context, id domain.StreamID) error
	Cleanup(ctx context.Context) error
}

// HostNotifications receives system-level events the embedding host observes
// and forwards; the engine never polls OS state itself.
type HostNotifications interface {
	AudioInterruptionBegan(ctx context.Context)
	AudioInterruptionEnded(ctx context.Context, shouldResume bool)
	AudioRouteChanged(ctx context.Context, outputLost bool)
	MemoryWarning(ctx context.Context)
	EnterBackground(ctx context.Context)
	EnterForeground(ctx context.Context)
}

// EventPublisher fans engine events out to subscribers after the triggering
// change has been committed to the registry.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.EngineEvent)
	Subscribe(buffer int) (<-chan domain.EngineEvent, func())
}

// MetricsSink decouples core services from the metrics backend.
type MetricsSink interface {
	StreamRegistered(platform domain.Platform)
	StreamUnregistered(platform domain.Platform)
	PlaybackStateChanged(id domain.StreamID, state domain.PlaybackState)
	BufferingEvent(id domain.StreamID)
	LoadDuration(platform domain.Platform, d time.Duration)
	RecoveryScheduled(kind domain.ErrorKind)
	RecoveryOutcome(kind domain.ErrorKind, success bool)
	AdaptiveQualityChange(from, to domain.QualityLevel)
	SurfacesSuspended(count int)
	EffectiveVolume(id domain.StreamID, volume float64)
}
