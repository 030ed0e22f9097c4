package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
	"playgrid/pkg/tracing"
)

// EngineConfig tunes one stream's playback engine.
type EngineConfig struct {
	LoadTimeout         time.Duration
	HealthProbeInterval time.Duration
	HealthProbeMisses   int
	QualityCooldown     time.Duration
	MaxRetries          int
	EventBuffer         int
}

// DefaultEngineConfig returns the production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LoadTimeout:         15 * time.Second,
		HealthProbeInterval: 10 * time.Second,
		HealthProbeMisses:   2,
		QualityCooldown:     30 * time.Second,
		MaxRetries:          3,
		EventBuffer:         64,
	}
}

// PlaybackEngine drives one stream's playback state machine. All inbound
// surface events are serialized through a single buffered channel consumed by
// one goroutine, so per-stream transitions apply in arrival order. Transport
// commands are fire-and-forget; the authoritative state change arrives later
// as an inbound event.
type PlaybackEngine struct {
	session  *domain.StreamSession
	cfg      EngineConfig
	registry ports.StreamRegistry
	pool     ports.SurfacePool
	embed    *EmbedBuilder
	adaptive *AdaptiveController
	recovery ports.RecoveryCoordinator

	publisher ports.EventPublisher
	metrics   ports.MetricsSink
	logger    *zap.SugaredLogger

	events    chan domain.SurfaceEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu                 sync.Mutex
	currentURL         string
	loadTimer          *time.Timer
	loadStartedAt      time.Time
	probeMisses        int
	embedSeenSinceTick bool
	lastManualQuality  time.Time
	retryCount         int
	appliedQuality     domain.QualityLevel
}

func NewPlaybackEngine(
	session *domain.StreamSession,
	cfg EngineConfig,
	adaptiveCfg AdaptiveConfig,
	registry ports.StreamRegistry,
	pool ports.SurfacePool,
	embed *EmbedBuilder,
	recovery ports.RecoveryCoordinator,
	publisher ports.EventPublisher,
	metrics ports.MetricsSink,
	logger *zap.SugaredLogger,
) *PlaybackEngine {
	copied := *session
	return &PlaybackEngine{
		session:    &copied,
		cfg:        cfg,
		registry:   registry,
		pool:       pool,
		embed:      embed,
		adaptive:   NewAdaptiveController(adaptiveCfg, logger),
		recovery:   recovery,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger.With("stream_id", session.ID),
		events:     make(chan domain.SurfaceEvent, cfg.EventBuffer),
		done:       make(chan struct{}),
		currentURL: session.SourceURL,
	}
}

// Start launches the event loop and periodic probes.
func (e *PlaybackEngine) Start() {
	e.wg.Add(1)
	go e.run()
}

// Close stops the event loop and cancels pending timers. Idempotent.
func (e *PlaybackEngine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		if e.loadTimer != nil {
			e.loadTimer.Stop()
			e.loadTimer = nil
		}
		e.mu.Unlock()
		close(e.done)
	})
	e.wg.Wait()
}

// HandleSurfaceEvent queues one inbound event for ordered processing.
func (e *PlaybackEngine) HandleSurfaceEvent(event domain.SurfaceEvent) {
	select {
	case e.events <- event:
	case <-e.done:
	}
}

// Load constructs the platform embed payload and dispatches it into the
// stream's rendering surface, starting the bounded load timeout.
func (e *PlaybackEngine) Load(ctx context.Context) error {
	ctx, span := tracing.TraceLoad(ctx, string(e.session.ID), string(e.session.Platform))
	defer span.End()

	if err := e.registry.SetPlaybackState(ctx, e.session.ID, domain.StateLoading); err != nil {
		return err
	}

	e.mu.Lock()
	sourceURL := e.currentURL
	e.loadStartedAt = time.Now()
	e.mu.Unlock()

	state, err := e.registry.GetState(ctx, e.session.ID)
	if err != nil {
		return err
	}
	quality := state.CurrentQuality

	content, err := e.embed.Build(e.session.Platform, sourceURL, quality)
	if err != nil {
		tracing.RecordError(ctx, err)
		e.postError(domain.ErrKindInvalidURL, err.Error())
		return err
	}

	// Surface acquisition never fails on capacity; the pool suspends the
	// least-recently-focused surface instead.
	e.pool.AcquireConfiguration(ctx, e.session.Platform)

	e.sendCommand(ctx, domain.SurfaceCommand{Type: domain.CommandLoad, Embed: content})
	e.armLoadTimeout()
	return nil
}

// Play requests playback. No-op when already playing; confirmation arrives
// as an inbound playing event.
func (e *PlaybackEngine) Play(ctx context.Context) error {
	state, err := e.registry.GetState(ctx, e.session.ID)
	if err != nil {
		return err
	}
	if state.PlaybackState == domain.StatePlaying {
		return nil
	}
	e.sendCommand(ctx, domain.SurfaceCommand{Type: domain.CommandPlay})
	return nil
}

// Pause requests a pause. No-op when already paused.
func (e *PlaybackEngine) Pause(ctx context.Context) error {
	state, err := e.registry.GetState(ctx, e.session.ID)
	if err != nil {
		return err
	}
	if state.PlaybackState == domain.StatePaused {
		return nil
	}
	e.sendCommand(ctx, domain.SurfaceCommand{Type: domain.CommandPause})
	return nil
}

// SetVolume clamps and forwards a volume change. Always succeeds locally.
func (e *PlaybackEngine) SetVolume(ctx context.Context, volume float64) error {
	volume = domain.ClampVolume(volume)
	if err := e.registry.SetVolume(ctx, e.session.ID, volume); err != nil {
		return err
	}
	e.sendCommand(ctx, domain.SurfaceCommand{Type: domain.CommandSetVolume, Volume: volume})
	return nil
}

// SetMuted forwards a mute change. Always succeeds locally.
func (e *PlaybackEngine) SetMuted(ctx context.Context, muted bool) error {
	if err := e.registry.SetMuted(ctx, e.session.ID, muted); err != nil {
		return err
	}
	e.sendCommand(ctx, domain.SurfaceCommand{Type: domain.CommandSetMuted, Muted: muted})
	return nil
}

// SetQuality applies a quality change. Manual changes inside the cooldown
// window are rejected to prevent thrash; adaptive changes always apply.
func (e *PlaybackEngine) SetQuality(ctx context.Context, level domain.QualityLevel, isAdaptive bool) error {
	e.mu.Lock()
	if !isAdaptive {
		if since := time.Since(e.lastManualQuality); since < e.cfg.QualityCooldown && !e.lastManualQuality.IsZero() {
			e.mu.Unlock()
			e.logger.Infow("manual quality change rejected by cooldown",
				"requested", level,
				"cooldown_remaining", e.cfg.QualityCooldown-since,
			)
			return domain.ErrQualityCooldown
		}
		e.lastManualQuality = time.Now()
	}
	from := e.appliedQuality
	if level.Ordered() {
		e.appliedQuality = level
	}
	e.mu.Unlock()

	if err := e.registry.SetQuality(ctx, e.session.ID, level, !isAdaptive); err != nil {
		return err
	}
	e.sendCommand(ctx, domain.SurfaceCommand{Type: domain.CommandSetQuality, Quality: level})

	eventType := domain.EngineEventQualityChanged
	if isAdaptive {
		eventType = domain.EngineEventAdaptiveQualityChange
		e.metrics.AdaptiveQualityChange(from, level)
	}
	e.publish(ctx, domain.EngineEvent{
		Type:        eventType,
		StreamID:    e.session.ID,
		Quality:     level,
		FromQuality: from,
		ToQuality:   level,
	})
	return nil
}

// Retry re-invokes Load, counting attempts against the ceiling. Exceeding
// the ceiling forces terminal error.
func (e *PlaybackEngine) Retry(ctx context.Context) error {
	e.mu.Lock()
	e.retryCount++
	count := e.retryCount
	e.mu.Unlock()

	if count > e.cfg.MaxRetries {
		e.logger.Warnw("retry ceiling exceeded", "attempts", count)
		if err := e.registry.SetPlaybackState(ctx, e.session.ID, domain.StateError); err != nil && !errors.Is(err, domain.ErrStreamNotFound) {
			e.logger.Warnw("failed to record terminal error state", "error", err)
		}
		e.publish(ctx, domain.EngineEvent{
			Type:      domain.EngineEventError,
			StreamID:  e.session.ID,
			ErrorKind: domain.ErrKindUnknown,
			Message:   "retry ceiling exceeded",
		})
		return domain.ErrRetryCeiling
	}
	return e.Load(ctx)
}

// ApplyRecovery executes a scheduled recovery action from the coordinator.
func (e *PlaybackEngine) ApplyRecovery(ctx context.Context, action RecoveryAction) {
	if action.ClearCache {
		e.sendCommand(ctx, domain.SurfaceCommand{Type: domain.CommandClearCache})
	}
	if action.Strategy.Kind == domain.StrategyAlternateURL && action.TargetURL != "" {
		e.mu.Lock()
		e.currentURL = action.TargetURL
		e.mu.Unlock()
	}
	if err := e.Load(ctx); err != nil {
		e.logger.Warnw("recovery load failed", "strategy", action.Strategy.Name, "error", err)
	}
}

// AvailableQualities records the platform-advertised quality ladder.
func (e *PlaybackEngine) AvailableQualities(levels []domain.QualityLevel) {
	e.adaptive.SetAvailableQualities(levels)
}

func (e *PlaybackEngine) run() {
	defer e.wg.Done()

	healthTicker := time.NewTicker(e.cfg.HealthProbeInterval)
	defer healthTicker.Stop()
	adaptiveTicker := time.NewTicker(e.adaptive.cfg.SampleInterval)
	defer adaptiveTicker.Stop()

	for {
		select {
		case <-e.done:
			return
		case event := <-e.events:
			e.handleEvent(event)
		case <-healthTicker.C:
			e.healthProbe()
		case <-adaptiveTicker.C:
			e.evaluateQuality()
		}
	}
}

func (e *PlaybackEngine) handleEvent(event domain.SurfaceEvent) {
	ctx := context.Background()

	if !event.Type.Known() {
		e.logger.Debugw("ignoring unrecognized surface event", "type", event.Type)
		return
	}

	switch event.Type {
	case domain.SurfaceEventReady:
		e.onReady(ctx)

	case domain.SurfaceEventPlaying:
		e.setState(ctx, domain.StatePlaying)

	case domain.SurfaceEventPaused:
		e.setState(ctx, domain.StatePaused)

	case domain.SurfaceEventBuffering:
		e.setState(ctx, domain.StateBuffering)
		e.adaptive.RecordBuffering(time.Now())
		e.metrics.BufferingEvent(e.session.ID)

	case domain.SurfaceEventEnded:
		e.setState(ctx, domain.StateEnded)
		e.publish(ctx, domain.EngineEvent{Type: domain.EngineEventEnded, StreamID: e.session.ID})

	case domain.SurfaceEventQualityChanged:
		if event.Quality.Ordered() {
			e.mu.Lock()
			e.appliedQuality = event.Quality
			e.mu.Unlock()
		}

	case domain.SurfaceEventError:
		kind := event.ErrorKind
		if kind == "" {
			kind = domain.ErrKindUnknown
		}
		e.onError(ctx, kind, event.Message)

	case domain.SurfaceEventHealthMetrics:
		e.onHealthMetrics(ctx, event.Metrics)

	case domain.SurfaceEventViewerCount:
		if err := e.registry.UpdateViewerCount(ctx, e.session.ID, event.ViewerCount); err != nil {
			e.logger.Debugw("viewer count update failed", "error", err)
		}
	}
}

func (e *PlaybackEngine) onReady(ctx context.Context) {
	e.mu.Lock()
	if e.loadTimer != nil {
		e.loadTimer.Stop()
		e.loadTimer = nil
	}
	loadedIn := time.Since(e.loadStartedAt)
	e.retryCount = 0
	e.probeMisses = 0
	e.embedSeenSinceTick = true
	e.mu.Unlock()

	e.setState(ctx, domain.StateReady)
	e.metrics.LoadDuration(e.session.Platform, loadedIn)
	e.recovery.ResetAttempt(e.session.ID)
	e.publish(ctx, domain.EngineEvent{Type: domain.EngineEventReady, StreamID: e.session.ID})
}

func (e *PlaybackEngine) onError(ctx context.Context, kind domain.ErrorKind, message string) {
	e.mu.Lock()
	if e.loadTimer != nil {
		e.loadTimer.Stop()
		e.loadTimer = nil
	}
	sourceURL := e.currentURL
	e.mu.Unlock()

	e.setState(ctx, domain.StateError)

	result := e.recovery.RecoverFromError(ctx, e.session.ID, e.session.Platform, kind, sourceURL)
	switch result.Status {
	case domain.RecoveryScheduled, domain.RecoveryAlreadyInProgress:
		// Silent automatic recovery; the caller only hears about terminal
		// failures.
	case domain.RecoveryFailed:
		e.publish(ctx, domain.EngineEvent{
			Type:      domain.EngineEventError,
			StreamID:  e.session.ID,
			ErrorKind: kind,
			Message:   message,
		})
	}
}

func (e *PlaybackEngine) onHealthMetrics(ctx context.Context, metrics *domain.HealthMetrics) {
	if metrics == nil {
		return
	}

	e.mu.Lock()
	if metrics.EmbedPresent {
		e.embedSeenSinceTick = true
		e.probeMisses = 0
	}
	e.mu.Unlock()

	estimate := domain.NetworkEstimate{
		Grade:          gradeFor(metrics),
		BandwidthMbps:  metrics.BandwidthMbps,
		FrameDropRatio: metrics.FrameDropRatio,
	}
	if e.adaptive.UpdateEstimate(estimate) {
		e.publish(ctx, domain.EngineEvent{
			Type:     domain.EngineEventNetworkQualityChanged,
			StreamID: e.session.ID,
			Estimate: &estimate,
		})
	}
}

// healthProbe sends a liveness probe into the surface. Two consecutive
// probe intervals with no embed-present signal force embeddingLost.
func (e *PlaybackEngine) healthProbe() {
	ctx := context.Background()

	state, err := e.registry.GetState(ctx, e.session.ID)
	if err != nil || state.PlaybackState == domain.StateIdle {
		return
	}

	e.mu.Lock()
	if !e.embedSeenSinceTick {
		e.probeMisses++
	}
	misses := e.probeMisses
	e.embedSeenSinceTick = false
	e.mu.Unlock()

	e.sendCommand(ctx, domain.SurfaceCommand{Type: domain.CommandProbe})

	if misses >= e.cfg.HealthProbeMisses {
		e.mu.Lock()
		e.probeMisses = 0
		e.mu.Unlock()
		e.logger.Warnw("embed lost after consecutive missed probes", "misses", misses)
		e.onError(ctx, domain.ErrKindEmbeddingLost, "no live embed detected")
	}
}

// evaluateQuality runs one adaptive control cycle.
func (e *PlaybackEngine) evaluateQuality() {
	ctx := context.Background()

	state, err := e.registry.GetState(ctx, e.session.ID)
	if err != nil {
		return
	}
	if state.PlaybackState != domain.StatePlaying && state.PlaybackState != domain.StateBuffering {
		return
	}

	e.mu.Lock()
	current := e.appliedQuality
	e.mu.Unlock()
	if current == "" {
		current = state.CurrentQuality
	}
	pinned := state.QualityPinned

	decision, ok := e.adaptive.DetermineOptimalQuality(current, pinned, time.Now())
	if !ok {
		return
	}

	e.logger.Infow("adaptive quality change",
		"from", decision.From,
		"to", decision.To,
		"forced", decision.Forced,
	)
	if err := e.SetQuality(ctx, decision.To, true); err != nil {
		e.logger.Warnw("adaptive quality change failed", "error", err)
	}
}

func (e *PlaybackEngine) armLoadTimeout() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loadTimer != nil {
		e.loadTimer.Stop()
	}
	e.loadTimer = time.AfterFunc(e.cfg.LoadTimeout, func() {
		e.postError(domain.ErrKindLoadTimeout, "no ready signal within load timeout")
	})
}

// postError injects a synthetic error event through the ordered channel so
// timer-originated failures interleave correctly with surface events.
func (e *PlaybackEngine) postError(kind domain.ErrorKind, message string) {
	e.HandleSurfaceEvent(domain.SurfaceEvent{
		Type:      domain.SurfaceEventError,
		StreamID:  e.session.ID,
		ErrorKind: kind,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func (e *PlaybackEngine) setState(ctx context.Context, next domain.PlaybackState) {
	if err := e.registry.SetPlaybackState(ctx, e.session.ID, next); err != nil {
		if !errors.Is(err, domain.ErrStreamNotFound) {
			e.logger.Debugw("state transition rejected", "next", next, "error", err)
		}
	}
}

// sendCommand forwards a command to the stream's surface. A missing or dead
// surface is skipped silently; commands are never an error path.
func (e *PlaybackEngine) sendCommand(ctx context.Context, cmd domain.SurfaceCommand) {
	surface, ok := e.pool.Lookup(e.session.ID)
	if !ok || !surface.Alive() {
		e.logger.Debugw("no live surface for command", "command", cmd.Type)
		return
	}
	if err := surface.Send(ctx, cmd); err != nil {
		e.logger.Debugw("surface command failed", "command", cmd.Type, "error", err)
	}
}

func (e *PlaybackEngine) publish(ctx context.Context, event domain.EngineEvent) {
	if e.publisher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.publisher.Publish(ctx, event)
}

// gradeFor buckets raw health telemetry into a categorical network grade.
func gradeFor(metrics *domain.HealthMetrics) domain.NetworkGrade {
	var grade domain.NetworkGrade
	switch metrics.ConnectionType {
	case "ethernet", "wifi":
		grade = domain.GradeExcellent
	case "cellular", "4g", "5g":
		grade = domain.GradeGood
	case "3g":
		grade = domain.GradeFair
	case "2g", "none":
		grade = domain.GradePoor
	default:
		grade = domain.GradeGood
	}

	// Heavy frame drops degrade the bucket regardless of link type.
	if metrics.FrameDropRatio > 0.25 {
		grade = domain.GradePoor
	} else if metrics.FrameDropRatio > 0.10 && grade != domain.GradePoor {
		grade = downgrade(grade)
	}
	return grade
}

func downgrade(grade domain.NetworkGrade) domain.NetworkGrade {
	switch grade {
	case domain.GradeExcellent:
		return domain.GradeGood
	case domain.GradeGood:
		return domain.GradeFair
	default:
		return domain.GradePoor
	}
}
