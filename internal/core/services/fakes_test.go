package services

import (
	"context"
	"sync"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
)

// fakeSurfacePool records the pool interactions the services under test are
// expected to drive.
type fakeSurfacePool struct {
	mu           sync.Mutex
	surfaces     map[domain.StreamID]ports.RenderingSurface
	focused      []domain.StreamID
	suspendedFor []domain.StreamID
	resumed      int
	pressure     int
}

func newFakeSurfacePool() *fakeSurfacePool {
	return &fakeSurfacePool{surfaces: make(map[domain.StreamID]ports.RenderingSurface)}
}

func (p *fakeSurfacePool) AcquireConfiguration(ctx context.Context, platform domain.Platform) domain.SurfaceConfiguration {
	return domain.SurfaceConfiguration{Platform: platform}
}

func (p *fakeSurfacePool) Register(surface ports.RenderingSurface, streamID domain.StreamID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.surfaces[streamID] = surface
}

func (p *fakeSurfacePool) Unregister(id domain.SurfaceID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for streamID, surface := range p.surfaces {
		if surface.ID() == id {
			delete(p.surfaces, streamID)
		}
	}
}

func (p *fakeSurfacePool) Lookup(streamID domain.StreamID) (ports.RenderingSurface, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	surface, ok := p.surfaces[streamID]
	return surface, ok
}

func (p *fakeSurfacePool) SuspendAllExcept(ctx context.Context, active domain.StreamID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspendedFor = append(p.suspendedFor, active)
}

func (p *fakeSurfacePool) ResumeAll(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resumed++
}

func (p *fakeSurfacePool) HandleMemoryPressure(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pressure++
}

func (p *fakeSurfacePool) MarkFocused(streamID domain.StreamID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.focused = append(p.focused, streamID)
}

func (p *fakeSurfacePool) MarkPlaying(streamID domain.StreamID, playing bool) {}
func (p *fakeSurfacePool) MarkVisible(streamID domain.StreamID, visible bool) {}

func (p *fakeSurfacePool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.surfaces)
}

func (p *fakeSurfacePool) Close() {}

var _ ports.SurfacePool = (*fakeSurfacePool)(nil)

// fakeSurface is an in-memory rendering surface that records every command
// sent to it.
type fakeSurface struct {
	mu       sync.Mutex
	id       domain.SurfaceID
	streamID domain.StreamID
	alive    bool
	commands []domain.SurfaceCommand
}

func newFakeSurface(id domain.SurfaceID, streamID domain.StreamID) *fakeSurface {
	return &fakeSurface{id: id, streamID: streamID, alive: true}
}

func (s *fakeSurface) ID() domain.SurfaceID      { return s.id }
func (s *fakeSurface) StreamID() domain.StreamID { return s.streamID }

func (s *fakeSurface) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *fakeSurface) Send(ctx context.Context, cmd domain.SurfaceCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive {
		return domain.ErrSurfaceDead
	}
	s.commands = append(s.commands, cmd)
	return nil
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = false
	return nil
}

func (s *fakeSurface) sent() []domain.SurfaceCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SurfaceCommand, len(s.commands))
	copy(out, s.commands)
	return out
}

func (s *fakeSurface) lastCommand() (domain.SurfaceCommand, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.commands) == 0 {
		return domain.SurfaceCommand{}, false
	}
	return s.commands[len(s.commands)-1], true
}

var _ ports.RenderingSurface = (*fakeSurface)(nil)

// capturingPublisher collects published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.EngineEvent
}

func (p *capturingPublisher) Publish(ctx context.Context, event domain.EngineEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) Subscribe(buffer int) (<-chan domain.EngineEvent, func()) {
	ch := make(chan domain.EngineEvent, buffer)
	return ch, func() {}
}

func (p *capturingPublisher) byType(eventType domain.EngineEventType) []domain.EngineEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.EngineEvent
	for _, event := range p.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

var _ ports.EventPublisher = (*capturingPublisher)(nil)
