package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
)

// EngineManager owns one playback engine per registered stream and wires the
// cross-component reactions: audio rebalances push volumes into surfaces,
// route loss pauses everything, recovery actions re-enter the owning engine.
// It is the caller-facing implementation of the transport control surface
// and of the host notification sink.
type EngineManager struct {
	engineCfg   EngineConfig
	adaptiveCfg AdaptiveConfig

	registry  *RegistryService
	pool      ports.SurfacePool
	mixer     *AudioMixerService
	recovery  *RecoveryCoordinatorService
	embed     *EmbedBuilder
	publisher ports.EventPublisher
	metrics   ports.MetricsSink
	logger    *zap.SugaredLogger

	mu      sync.RWMutex
	engines map[domain.StreamID]*PlaybackEngine
	closed  bool
}

var (
	_ ports.PlaybackService   = (*EngineManager)(nil)
	_ ports.HostNotifications = (*EngineManager)(nil)
)

func NewEngineManager(
	engineCfg EngineConfig,
	adaptiveCfg AdaptiveConfig,
	registry *RegistryService,
	pool ports.SurfacePool,
	mixer *AudioMixerService,
	recovery *RecoveryCoordinatorService,
	embed *EmbedBuilder,
	publisher ports.EventPublisher,
	metrics ports.MetricsSink,
	logger *zap.SugaredLogger,
) *EngineManager {
	m := &EngineManager{
		engineCfg:   engineCfg,
		adaptiveCfg: adaptiveCfg,
		registry:    registry,
		pool:        pool,
		mixer:       mixer,
		recovery:    recovery,
		embed:       embed,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger,
		engines:     make(map[domain.StreamID]*PlaybackEngine),
	}

	mixer.SetHooks(m.applyEffectiveVolume, m.pauseAllSurfaces)
	registry.SetTransportHooks(m.sendPause, m.sendPlay)
	recovery.SetHooks(m.performRecovery, m.streamAlive)
	return m
}

// LoadStream registers a session and starts loading its embed. The stream's
// engine stays alive until CloseStream or Cleanup.
func (m *EngineManager) LoadStream(ctx context.Context, session *domain.StreamSession) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.ErrEngineClosed
	}
	if _, exists := m.engines[session.ID]; exists {
		m.mu.Unlock()
		return domain.ErrStreamExists
	}
	m.mu.Unlock()

	if _, err := m.registry.RegisterStream(ctx, session); err != nil {
		return err
	}

	engine := NewPlaybackEngine(
		session,
		m.engineCfg,
		m.adaptiveCfg,
		m.registry,
		m.pool,
		m.embed,
		m.recovery,
		m.publisher,
		m.metrics,
		m.logger,
	)

	m.mu.Lock()
	m.engines[session.ID] = engine
	m.mu.Unlock()

	engine.Start()
	return engine.Load(ctx)
}

func (m *EngineManager) Play(ctx context.Context, id domain.StreamID) error {
	engine, err := m.engine(id)
	if err != nil {
		return err
	}
	return engine.Play(ctx)
}

func (m *EngineManager) Pause(ctx context.Context, id domain.StreamID) error {
	engine, err := m.engine(id)
	if err != nil {
		return err
	}
	return engine.Pause(ctx)
}

func (m *EngineManager) SetVolume(ctx context.Context, id domain.StreamID, volume float64) error {
	engine, err := m.engine(id)
	if err != nil {
		return err
	}
	return engine.SetVolume(ctx, volume)
}

func (m *EngineManager) SetMuted(ctx context.Context, id domain.StreamID, muted bool) error {
	engine, err := m.engine(id)
	if err != nil {
		return err
	}
	return engine.SetMuted(ctx, muted)
}

func (m *EngineManager) SetQuality(ctx context.Context, id domain.StreamID, level domain.QualityLevel, isAdaptive bool) error {
	engine, err := m.engine(id)
	if err != nil {
		return err
	}
	return engine.SetQuality(ctx, level, isAdaptive)
}

func (m *EngineManager) Retry(ctx context.Context, id domain.StreamID) error {
	engine, err := m.engine(id)
	if err != nil {
		return err
	}
	return engine.Retry(ctx)
}

// CloseStream tears down one stream: pending recovery cancelled, engine
// stopped, surface unregistered, registry record removed.
func (m *EngineManager) CloseStream(ctx context.Context, id domain.StreamID) error {
	m.mu.Lock()
	engine, exists := m.engines[id]
	delete(m.engines, id)
	m.mu.Unlock()

	m.recovery.CancelRecovery(id)
	if exists {
		engine.Close()
	}

	if surface, ok := m.pool.Lookup(id); ok {
		m.pool.Unregister(surface.ID())
	}

	return m.registry.UnregisterStream(ctx, id)
}

// Cleanup tears down every stream. Safe to call multiple times.
func (m *EngineManager) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	engines := m.engines
	m.engines = make(map[domain.StreamID]*PlaybackEngine)
	m.mu.Unlock()

	for id, engine := range engines {
		m.recovery.CancelRecovery(id)
		engine.Close()
		if surface, ok := m.pool.Lookup(id); ok {
			m.pool.Unregister(surface.ID())
		}
	}
	return m.registry.Cleanup(ctx)
}

// Close shuts the manager down for good.
func (m *EngineManager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if err := m.Cleanup(ctx); err != nil {
		return err
	}
	m.recovery.Close()
	m.pool.Close()
	return nil
}

// HandleSurfaceEvent routes one inbound surface event to the owning stream's
// engine. Events for unknown streams are dropped.
func (m *EngineManager) HandleSurfaceEvent(event domain.SurfaceEvent) {
	m.mu.RLock()
	engine, exists := m.engines[event.StreamID]
	m.mu.RUnlock()

	if !exists {
		m.logger.Debugw("surface event for unknown stream", "stream_id", event.StreamID, "type", event.Type)
		return
	}
	engine.HandleSurfaceEvent(event)
}

// AudioInterruptionBegan ducks all streams for the duration of a
// higher-priority system audio event.
func (m *EngineManager) AudioInterruptionBegan(ctx context.Context) {
	m.mixer.BeginInterruption()
}

func (m *EngineManager) AudioInterruptionEnded(ctx context.Context, shouldResume bool) {
	m.mixer.EndInterruption()
	if shouldResume {
		if err := m.registry.ResumeAllStreams(ctx); err != nil {
			m.logger.Warnw("resume after interruption failed", "error", err)
		}
	}
}

func (m *EngineManager) AudioRouteChanged(ctx context.Context, outputLost bool) {
	m.mixer.HandleRouteChange(outputLost)
}

func (m *EngineManager) MemoryWarning(ctx context.Context) {
	m.pool.HandleMemoryPressure(ctx)
}

func (m *EngineManager) EnterBackground(ctx context.Context) {
	if err := m.registry.PauseAllStreams(ctx); err != nil {
		m.logger.Warnw("background pause failed", "error", err)
	}
}

func (m *EngineManager) EnterForeground(ctx context.Context) {
	m.pool.ResumeAll(ctx)
	if err := m.registry.ResumeAllStreams(ctx); err != nil {
		m.logger.Warnw("foreground resume failed", "error", err)
	}
}

func (m *EngineManager) engine(id domain.StreamID) (*PlaybackEngine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	engine, exists := m.engines[id]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}
	return engine, nil
}

func (m *EngineManager) applyEffectiveVolume(id domain.StreamID, volume float64) {
	surface, ok := m.pool.Lookup(id)
	if !ok || !surface.Alive() {
		return
	}
	cmd := domain.SurfaceCommand{Type: domain.CommandSetVolume, Volume: volume}
	if err := surface.Send(context.Background(), cmd); err != nil {
		m.logger.Debugw("effective volume push failed", "stream_id", id, "error", err)
	}
}

func (m *EngineManager) pauseAllSurfaces() {
	m.mu.RLock()
	ids := make([]domain.StreamID, 0, len(m.engines))
	for id := range m.engines {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	ctx := context.Background()
	for _, id := range ids {
		m.sendPause(ctx, id)
	}
}

// sendPause and sendPlay push transport commands without reading registry
// state; they are safe to invoke from inside registry mutations.
func (m *EngineManager) sendPause(ctx context.Context, id domain.StreamID) {
	m.sendToSurface(ctx, id, domain.SurfaceCommand{Type: domain.CommandPause})
}

func (m *EngineManager) sendPlay(ctx context.Context, id domain.StreamID) {
	m.sendToSurface(ctx, id, domain.SurfaceCommand{Type: domain.CommandPlay})
}

func (m *EngineManager) sendToSurface(ctx context.Context, id domain.StreamID, cmd domain.SurfaceCommand) {
	surface, ok := m.pool.Lookup(id)
	if !ok || !surface.Alive() {
		return
	}
	if err := surface.Send(ctx, cmd); err != nil {
		m.logger.Debugw("surface command failed", "stream_id", id, "command", cmd.Type, "error", err)
	}
}

func (m *EngineManager) performRecovery(ctx context.Context, action RecoveryAction) {
	m.mu.RLock()
	engine, exists := m.engines[action.StreamID]
	m.mu.RUnlock()

	if !exists {
		return
	}
	engine.ApplyRecovery(ctx, action)
}

func (m *EngineManager) streamAlive(id domain.StreamID) bool {
	return m.registry.Exists(context.Background(), id)
}
