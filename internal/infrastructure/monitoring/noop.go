package monitoring

import (
	"time"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
)

// NoopCollector discards all metrics, used when monitoring is disabled.
type NoopCollector struct{}

var _ ports.MetricsSink = NoopCollector{}

func (NoopCollector) StreamRegistered(domain.Platform)                           {}
func (NoopCollector) StreamUnregistered(domain.Platform)                         {}
func (NoopCollector) PlaybackStateChanged(domain.StreamID, domain.PlaybackState) {}
func (NoopCollector) BufferingEvent(domain.StreamID)                             {}
func (NoopCollector) LoadDuration(domain.Platform, time.Duration)                {}
func (NoopCollector) RecoveryScheduled(domain.ErrorKind)                         {}
func (NoopCollector) RecoveryOutcome(domain.ErrorKind, bool)                     {}
func (NoopCollector) AdaptiveQualityChange(from, to domain.QualityLevel)         {}
func (NoopCollector) SurfacesSuspended(int)                                      {}
func (NoopCollector) EffectiveVolume(domain.StreamID, float64)                   {}
