package surfacepool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
	"playgrid/internal/core/services"
)

// Config tunes the rendering surface pool.
type Config struct {
	Capacity               int
	MemoryPressureDebounce time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:               8,
		MemoryPressureDebounce: 5 * time.Second,
	}
}

// entry is the pool's bookkeeping for one registered surface.
type entry struct {
	surface       ports.RenderingSurface
	streamID      domain.StreamID
	lastFocusedAt time.Time
	registeredAt  time.Time
	visible       bool
	playing       bool
	// wasPlaying records the pre-suspension play state so ResumeAll only
	// resumes surfaces that were actually playing.
	wasPlaying bool
	suspended  bool
}

// Pool owns the bounded set of embedded rendering surfaces. Surfaces can die
// out-of-band; every operation checks liveness first and silently drops dead
// handles instead of failing.
type Pool struct {
	cfg     Config
	embed   *services.EmbedBuilder
	metrics ports.MetricsSink
	logger  *zap.SugaredLogger

	mu               sync.Mutex
	entries          map[domain.SurfaceID]*entry
	byStream         map[domain.StreamID]domain.SurfaceID
	lastPressureSeen time.Time
	closed           bool
}

var _ ports.SurfacePool = (*Pool)(nil)

func New(cfg Config, embed *services.EmbedBuilder, metrics ports.MetricsSink, logger *zap.SugaredLogger) *Pool {
	return &Pool{
		cfg:      cfg,
		embed:    embed,
		metrics:  metrics,
		logger:   logger,
		entries:  make(map[domain.SurfaceID]*entry),
		byStream: make(map[domain.StreamID]domain.SurfaceID),
	}
}

// AcquireConfiguration returns the platform-specific surface setup. When the
// pool is at capacity the least-recently-focused live surface is suspended
// to make room; the caller never fails on capacity.
func (p *Pool) AcquireConfiguration(ctx context.Context, platform domain.Platform) domain.SurfaceConfiguration {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dropDeadLocked()
	if p.liveCountLocked() >= p.cfg.Capacity {
		p.suspendColdestLocked(ctx)
	}
	return p.embed.SurfaceConfiguration(platform)
}

// Register adds a surface to the live set.
func (p *Pool) Register(surface ports.RenderingSurface, streamID domain.StreamID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.entries[surface.ID()] = &entry{
		surface:      surface,
		streamID:     streamID,
		registeredAt: now,
		visible:      true,
	}
	p.byStream[streamID] = surface.ID()
	p.logger.Debugw("surface registered", "surface_id", surface.ID(), "stream_id", streamID)
}

// Unregister removes a surface. Unknown IDs are ignored.
func (p *Pool) Unregister(id domain.SurfaceID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ent, ok := p.entries[id]
	if !ok {
		return
	}
	delete(p.entries, id)
	if p.byStream[ent.streamID] == id {
		delete(p.byStream, ent.streamID)
	}
	p.logger.Debugw("surface unregistered", "surface_id", id, "stream_id", ent.streamID)
}

// Lookup finds the live surface owned by a stream.
func (p *Pool) Lookup(streamID domain.StreamID) (ports.RenderingSurface, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.byStream[streamID]
	if !ok {
		return nil, false
	}
	ent, ok := p.entries[id]
	if !ok || !ent.surface.Alive() {
		return nil, false
	}
	return ent.surface, true
}

// SuspendAllExcept pauses media in every live surface except the active one.
// Used on focus change to cut background resource usage.
func (p *Pool) SuspendAllExcept(ctx context.Context, active domain.StreamID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	suspended := 0
	for _, ent := range p.entries {
		if ent.streamID == active {
			continue
		}
		if p.suspendLocked(ctx, ent) {
			suspended++
		}
	}
	if suspended > 0 && p.metrics != nil {
		p.metrics.SurfacesSuspended(suspended)
	}
}

// ResumeAll reverses suspension, resuming only surfaces that were playing
// before they were suspended.
func (p *Pool) ResumeAll(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ent := range p.entries {
		if !ent.suspended {
			continue
		}
		if !ent.surface.Alive() {
			continue
		}
		ent.suspended = false
		if err := ent.surface.Send(ctx, domain.SurfaceCommand{Type: domain.CommandResume}); err != nil {
			continue
		}
		if ent.wasPlaying {
			_ = ent.surface.Send(ctx, domain.SurfaceCommand{Type: domain.CommandPlay})
		}
		ent.wasPlaying = false
	}
}

// HandleMemoryPressure purges cached site data, drops dead handles and
// suspends every invisible surface. Idempotent; repeated calls within the
// debounce window are ignored.
func (p *Pool) HandleMemoryPressure(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if now.Sub(p.lastPressureSeen) < p.cfg.MemoryPressureDebounce {
		return
	}
	p.lastPressureSeen = now

	p.dropDeadLocked()

	suspended := 0
	for _, ent := range p.entries {
		if !ent.surface.Alive() {
			continue
		}
		_ = ent.surface.Send(ctx, domain.SurfaceCommand{Type: domain.CommandClearCache})
		if !ent.visible {
			if p.suspendLocked(ctx, ent) {
				suspended++
			}
		}
	}
	p.logger.Infow("memory pressure handled", "suspended", suspended, "live", p.liveCountLocked())
	if suspended > 0 && p.metrics != nil {
		p.metrics.SurfacesSuspended(suspended)
	}
}

func (p *Pool) MarkFocused(streamID domain.StreamID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byStream[streamID]; ok {
		if ent, ok := p.entries[id]; ok {
			ent.lastFocusedAt = time.Now()
		}
	}
}

func (p *Pool) MarkPlaying(streamID domain.StreamID, playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byStream[streamID]; ok {
		if ent, ok := p.entries[id]; ok {
			ent.playing = playing
			if playing {
				ent.suspended = false
			}
		}
	}
}

func (p *Pool) MarkVisible(streamID domain.StreamID, visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byStream[streamID]; ok {
		if ent, ok := p.entries[id]; ok {
			ent.visible = visible
		}
	}
}

// LiveCount returns the number of live registered surfaces.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropDeadLocked()
	return p.liveCountLocked()
}

// Close drops all bookkeeping. Surfaces themselves are owned by the
// embedding host and are not destroyed here.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.entries = make(map[domain.SurfaceID]*entry)
	p.byStream = make(map[domain.StreamID]domain.SurfaceID)
}

// suspendLocked pauses a live surface, remembering its play state. Reports
// whether a suspension actually happened.
func (p *Pool) suspendLocked(ctx context.Context, ent *entry) bool {
	if ent.suspended || !ent.surface.Alive() {
		return false
	}
	ent.wasPlaying = ent.playing
	ent.suspended = true
	if err := ent.surface.Send(ctx, domain.SurfaceCommand{Type: domain.CommandSuspend}); err != nil {
		// Dead or wedged surface: bookkeeping stands, the send is skipped.
		p.logger.Debugw("suspend command failed", "surface_id", ent.surface.ID(), "error", err)
	}
	return true
}

// suspendColdestLocked suspends the least-recently-focused live surface that
// is not already suspended.
func (p *Pool) suspendColdestLocked(ctx context.Context) {
	var coldest *entry
	for _, ent := range p.entries {
		if ent.suspended || !ent.surface.Alive() {
			continue
		}
		if coldest == nil || focusTime(ent).Before(focusTime(coldest)) {
			coldest = ent
		}
	}
	if coldest == nil {
		return
	}
	p.logger.Infow("pool at capacity, suspending least-recently-focused surface",
		"surface_id", coldest.surface.ID(),
		"stream_id", coldest.streamID,
	)
	if p.suspendLocked(ctx, coldest) && p.metrics != nil {
		p.metrics.SurfacesSuspended(1)
	}
}

// focusTime orders entries for eviction: a surface never focused sorts by
// registration time instead.
func focusTime(ent *entry) time.Time {
	if ent.lastFocusedAt.IsZero() {
		return ent.registeredAt
	}
	return ent.lastFocusedAt
}

func (p *Pool) dropDeadLocked() {
	for id, ent := range p.entries {
		if ent.surface.Alive() {
			continue
		}
		delete(p.entries, id)
		if p.byStream[ent.streamID] == id {
			delete(p.byStream, ent.streamID)
		}
	}
}

func (p *Pool) liveCountLocked() int {
	n := 0
	for _, ent := range p.entries {
		if ent.surface.Alive() && !ent.suspended {
			n++
		}
	}
	return n
}
