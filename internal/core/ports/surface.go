package ports

import (
	"context"

	"playgrid/internal/core/domain"
)

// RenderingSurface is the narrow handle to one embedded rendering context.
// Implementations may die out-of-band (the surface destroyed behind the
// engine's back); callers must check Alive and tolerate send failures by
// skipping, never by surfacing an error to the user.
type RenderingSurface interface {
	ID() domain.SurfaceID
	StreamID() domain.StreamID
	Alive() bool
	Send(ctx context.Context, cmd domain.SurfaceCommand) error
	Close() error
}

// SurfacePool owns the bounded set of rendering surfaces and their liveness.
type SurfacePool interface {
	// AcquireConfiguration returns the platform-specific surface setup.
	// Exceeding capacity never fails the caller: the least-recently-focused
	// surface is suspended to make room.
	AcquireConfiguration(ctx context.Context, platform domain.Platform) domain.SurfaceConfiguration

	Register(surface RenderingSurface, streamID domain.StreamID)
	Unregister(id domain.SurfaceID)
	Lookup(streamID domain.StreamID) (RenderingSurface, bool)

	SuspendAllExcept(ctx context.Context, active domain.StreamID)
	ResumeAll(ctx context.Context)
	HandleMemoryPressure(ctx context.Context)

	// MarkFocused and MarkPlaying feed the LRU-focus and was-playing
	// bookkeeping that suspension decisions depend on.
	MarkFocused(streamID domain.StreamID)
	MarkPlaying(streamID domain.StreamID, playing bool)
	MarkVisible(streamID domain.StreamID, visible bool)

	LiveCount() int
	Close()
}
