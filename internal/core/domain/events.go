package domain

import "time"

// SurfaceEventType enumerates the structured events a rendering surface can
// post back into the engine. Unrecognized types are logged and ignored so the
// bridge protocol can grow without breaking older engines.
type SurfaceEventType string

const (
	SurfaceEventReady          SurfaceEventType = "ready"
	SurfaceEventPlaying        SurfaceEventType = "playing"
	SurfaceEventPaused         SurfaceEventType = "paused"
	SurfaceEventBuffering      SurfaceEventType = "buffering"
	SurfaceEventEnded          SurfaceEventType = "ended"
	SurfaceEventQualityChanged SurfaceEventType = "quality_changed"
	SurfaceEventError          SurfaceEventType = "error"
	SurfaceEventHealthMetrics  SurfaceEventType = "health_metrics"
	SurfaceEventViewerCount    SurfaceEventType = "viewer_count"
)

func (t SurfaceEventType) Known() bool {
	switch t {
	case SurfaceEventReady, SurfaceEventPlaying, SurfaceEventPaused,
		SurfaceEventBuffering, SurfaceEventEnded, SurfaceEventQualityChanged,
		SurfaceEventError, SurfaceEventHealthMetrics, SurfaceEventViewerCount:
		return true
	}
	return false
}

// HealthMetrics is the telemetry payload a surface reports periodically.
type HealthMetrics struct {
	BandwidthMbps  float64 `json:"bandwidth_mbps"`
	FrameDropRatio float64 `json:"frame_drop_ratio"`
	BufferSeconds  float64 `json:"buffer_seconds"`
	ConnectionType string  `json:"connection_type"`
	EmbedPresent   bool    `json:"embed_present"`
}

// SurfaceEvent is one inbound message from a rendering surface, delivered in
// order to the owning stream's playback engine.
type SurfaceEvent struct {
	Type        SurfaceEventType `json:"type"`
	StreamID    StreamID         `json:"stream_id"`
	Quality     QualityLevel     `json:"quality,omitempty"`
	ErrorKind   ErrorKind        `json:"error_kind,omitempty"`
	Message     string           `json:"message,omitempty"`
	ViewerCount int              `json:"viewer_count,omitempty"`
	Metrics     *HealthMetrics   `json:"metrics,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// SurfaceCommandType enumerates outbound transport commands.
type SurfaceCommandType string

const (
	CommandLoad       SurfaceCommandType = "load"
	CommandPlay       SurfaceCommandType = "play"
	CommandPause      SurfaceCommandType = "pause"
	CommandSetVolume  SurfaceCommandType = "set_volume"
	CommandSetMuted   SurfaceCommandType = "set_muted"
	CommandSetQuality SurfaceCommandType = "set_quality"
	CommandSuspend    SurfaceCommandType = "suspend"
	CommandResume     SurfaceCommandType = "resume"
	CommandProbe      SurfaceCommandType = "probe"
	CommandClearCache SurfaceCommandType = "clear_cache"
)

// SurfaceCommand is one outbound message to a rendering surface. Commands are
// fire-and-forget; state changes are confirmed only by inbound events.
type SurfaceCommand struct {
	Type    SurfaceCommandType `json:"type"`
	Volume  float64            `json:"volume,omitempty"`
	Muted   bool               `json:"muted,omitempty"`
	Quality QualityLevel       `json:"quality,omitempty"`
	Embed   *EmbedContent      `json:"embed,omitempty"`
}

// EngineEventType enumerates caller-facing notifications.
type EngineEventType string

const (
	EngineEventStateChanged          EngineEventType = "state.changed"
	EngineEventReady                 EngineEventType = "stream.ready"
	EngineEventError                 EngineEventType = "stream.error"
	EngineEventEnded                 EngineEventType = "stream.ended"
	EngineEventQualityChanged        EngineEventType = "quality.changed"
	EngineEventAdaptiveQualityChange EngineEventType = "quality.adaptive_change"
	EngineEventNetworkQualityChanged EngineEventType = "network.quality_changed"
	EngineEventViewerCountUpdate     EngineEventType = "viewers.updated"
	EngineEventFocusChanged          EngineEventType = "focus.changed"
	EngineEventRecoveryScheduled     EngineEventType = "recovery.scheduled"
	EngineEventRecoveryFailed        EngineEventType = "recovery.failed"
	EngineEventSurfaceSuspended      EngineEventType = "surface.suspended"
	EngineEventSurfaceResumed        EngineEventType = "surface.resumed"
)

// EngineEvent is an engine-originated notification delivered to subscribers
// (the embedding host UI) after the triggering change is committed.
type EngineEvent struct {
	Type        EngineEventType  `json:"type"`
	StreamID    StreamID         `json:"stream_id,omitempty"`
	State       PlaybackState    `json:"state,omitempty"`
	ErrorKind   ErrorKind        `json:"error_kind,omitempty"`
	Message     string           `json:"message,omitempty"`
	Quality     QualityLevel     `json:"quality,omitempty"`
	FromQuality QualityLevel     `json:"from_quality,omitempty"`
	ToQuality   QualityLevel     `json:"to_quality,omitempty"`
	Estimate    *NetworkEstimate `json:"estimate,omitempty"`
	ViewerCount int              `json:"viewer_count,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}
