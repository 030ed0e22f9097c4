package services

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
)

// AudioConfig tunes the mixing constants. The exact boost and attenuation
// values are tunable behavior, not load-bearing contracts.
type AudioConfig struct {
	MasterVolume          float64
	FocusBoost            float64
	BackgroundAttenuation float64
	DuckingFactor         float64
	VolumeStep            float64
}

// DefaultAudioConfig returns the production defaults.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		MasterVolume:          1.0,
		FocusBoost:            0.2,
		BackgroundAttenuation: 0.7,
		DuckingFactor:         0.5,
		VolumeStep:            0.1,
	}
}

// AudioMixerService computes effective per-stream output volumes under focus,
// ducking and multi-stream attenuation. Effective volumes are never stored;
// every rebalance recomputes them from the per-stream intent and pushes the
// results through the apply hook.
type AudioMixerService struct {
	cfg     AudioConfig
	logger  *zap.SugaredLogger
	metrics ports.MetricsSink

	mu       sync.Mutex
	channels map[domain.StreamID]*domain.AudioChannelState
	focused  domain.StreamID
	hasFocus bool
	master   float64
	ducking  bool

	// applyVolume pushes one recomputed effective volume to the stream's
	// rendering surface. pauseAll broadcasts a pause on audio route loss.
	applyVolume func(id domain.StreamID, volume float64)
	pauseAll    func()
}

var _ ports.AudioMixer = (*AudioMixerService)(nil)

func NewAudioMixerService(cfg AudioConfig, metrics ports.MetricsSink, logger *zap.SugaredLogger) *AudioMixerService {
	return &AudioMixerService{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		channels: make(map[domain.StreamID]*domain.AudioChannelState),
		master:   domain.ClampVolume(cfg.MasterVolume),
	}
}

// SetHooks wires the output callbacks. Both are optional; a nil hook is
// skipped during rebalance.
func (m *AudioMixerService) SetHooks(applyVolume func(id domain.StreamID, volume float64), pauseAll func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyVolume = applyVolume
	m.pauseAll = pauseAll
}

func (m *AudioMixerService) RegisterStream(id domain.StreamID, initialVolume float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.channels[id] = &domain.AudioChannelState{
		StreamID:   id,
		BaseVolume: domain.ClampVolume(initialVolume),
	}
	m.rebalanceLocked()
}

func (m *AudioMixerService) UnregisterStream(id domain.StreamID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.channels, id)
	if m.hasFocus && m.focused == id {
		m.hasFocus = false
		m.focused = ""
		// Reassign focus to any remaining stream.
		for remaining := range m.channels {
			m.focused = remaining
			m.hasFocus = true
			break
		}
	}
	m.rebalanceLocked()
}

func (m *AudioMixerService) SetFocusedStream(id domain.StreamID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.channels[id]; !ok {
		m.logger.Warnw("focus requested for unregistered stream", "stream_id", id)
		return
	}
	m.focused = id
	m.hasFocus = true
	m.rebalanceLocked()
}

func (m *AudioMixerService) ClearFocus() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focused = ""
	m.hasFocus = false
	m.rebalanceLocked()
}

func (m *AudioMixerService) FocusedStream() (domain.StreamID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused, m.hasFocus
}

func (m *AudioMixerService) SetStreamVolume(id domain.StreamID, volume float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	channel, ok := m.channels[id]
	if !ok {
		return
	}
	channel.BaseVolume = domain.ClampVolume(volume)
	m.rebalanceLocked()
}

func (m *AudioMixerService) SetStreamMuted(id domain.StreamID, muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	channel, ok := m.channels[id]
	if !ok {
		return
	}
	channel.IsMuted = muted
	m.rebalanceLocked()
}

func (m *AudioMixerService) SetMasterVolume(volume float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.master = domain.ClampVolume(volume)
	m.rebalanceLocked()
}

// HandleVolumeButtonPress adjusts the focused stream's base volume when one
// exists, otherwise the master volume, in fixed steps.
func (m *AudioMixerService) HandleVolumeButtonPress(increase bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	step := m.cfg.VolumeStep
	if !increase {
		step = -step
	}

	if m.hasFocus {
		if channel, ok := m.channels[m.focused]; ok {
			channel.BaseVolume = domain.ClampVolume(channel.BaseVolume + step)
			m.rebalanceLocked()
			return
		}
	}
	m.master = domain.ClampVolume(m.master + step)
	m.rebalanceLocked()
}

func (m *AudioMixerService) BeginInterruption() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ducking = true
	m.rebalanceLocked()
}

func (m *AudioMixerService) EndInterruption() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ducking = false
	m.rebalanceLocked()
}

// HandleRouteChange reacts to an output route change. Losing the route (for
// example wired output removed) pauses every stream instead of continuing at
// full volume over a speaker.
func (m *AudioMixerService) HandleRouteChange(outputLost bool) {
	m.mu.Lock()
	pause := m.pauseAll
	m.mu.Unlock()

	if outputLost && pause != nil {
		m.logger.Infow("audio route lost, pausing all streams")
		pause()
	}
}

// EffectiveVolume computes the current output volume for one stream. Each
// multiplicative stage clamps to [0,1] before the next applies.
func (m *AudioMixerService) EffectiveVolume(id domain.StreamID) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.effectiveVolumeLocked(id)
}

func (m *AudioMixerService) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

func (m *AudioMixerService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = make(map[domain.StreamID]*domain.AudioChannelState)
	m.focused = ""
	m.hasFocus = false
	m.ducking = false
	m.master = domain.ClampVolume(m.cfg.MasterVolume)
}

func (m *AudioMixerService) effectiveVolumeLocked(id domain.StreamID) float64 {
	channel, ok := m.channels[id]
	if !ok {
		return 0
	}
	if channel.IsMuted {
		return 0
	}

	volume := domain.ClampVolume(channel.BaseVolume * m.master)

	if m.hasFocus && m.focused == id {
		volume = domain.ClampVolume(volume + m.cfg.FocusBoost)
	} else {
		volume = domain.ClampVolume(volume * m.cfg.BackgroundAttenuation)
	}

	if n := len(m.channels); n > 1 {
		volume = domain.ClampVolume(volume / math.Sqrt(float64(n)))
	}

	if m.ducking {
		volume = domain.ClampVolume(volume * m.cfg.DuckingFactor)
	}
	return volume
}

func (m *AudioMixerService) rebalanceLocked() {
	for id := range m.channels {
		volume := m.effectiveVolumeLocked(id)
		if m.applyVolume != nil {
			m.applyVolume(id, volume)
		}
		if m.metrics != nil {
			m.metrics.EffectiveVolume(id, volume)
		}
	}
}
