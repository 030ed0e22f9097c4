package domain

import "time"

// PlaybackState is the per-stream state machine position.
// idle → loading → ready → playing ⇄ paused, buffering from playing/ready,
// error and ended terminal-ish (error is recoverable through the coordinator).
type PlaybackState string

const (
	StateIdle      PlaybackState = "idle"
	StateLoading   PlaybackState = "loading"
	StateReady     PlaybackState = "ready"
	StatePlaying   PlaybackState = "playing"
	StatePaused    PlaybackState = "paused"
	StateBuffering PlaybackState = "buffering"
	StateEnded     PlaybackState = "ended"
	StateError     PlaybackState = "error"
)

var playbackTransitions = map[PlaybackState][]PlaybackState{
	StateIdle:      {StateLoading},
	StateLoading:   {StateReady, StateError, StateEnded},
	StateReady:     {StatePlaying, StatePaused, StateBuffering, StateError, StateEnded},
	StatePlaying:   {StatePaused, StateBuffering, StateError, StateEnded},
	StatePaused:    {StatePlaying, StateBuffering, StateError, StateEnded},
	StateBuffering: {StatePlaying, StatePaused, StateReady, StateError, StateEnded},
	// Re-entry to loading is the recovery path.
	StateError: {StateLoading},
	StateEnded: {StateLoading},
}

// CanTransitionTo reports whether the state machine allows moving to next.
func (s PlaybackState) CanTransitionTo(next PlaybackState) bool {
	if s == next {
		return true
	}
	for _, allowed := range playbackTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state requires external action to leave.
func (s PlaybackState) IsTerminal() bool {
	return s == StateError || s == StateEnded
}

// StreamState is the authoritative per-stream record, owned exclusively by
// the registry. At most one record has IsFocused set at any time, and an
// invisible stream is never held in playing.
type StreamState struct {
	StreamID       StreamID
	PlaybackState  PlaybackState
	IsVisible      bool
	IsFocused      bool
	IsMuted        bool
	Volume         float64
	CurrentQuality QualityLevel
	// QualityPinned records user intent: set when the user picked a concrete
	// level, cleared on a manual return to auto. Adaptive changes update
	// CurrentQuality without touching it.
	QualityPinned bool
	LastUpdated   time.Time
}

// ClampVolume bounds a volume value to [0,1].
func ClampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
