package monitoring

import (
	"time"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	streamsActive   *prometheus.GaugeVec
	effectiveVolume *prometheus.GaugeVec

	// Counters
	bufferingEventsTotal  *prometheus.CounterVec
	stateTransitionsTotal *prometheus.CounterVec
	recoveriesScheduled   *prometheus.CounterVec
	recoveryOutcomes      *prometheus.CounterVec
	adaptiveChangesTotal  *prometheus.CounterVec
	surfacesSuspended     prometheus.Counter

	// Histograms
	loadDuration *prometheus.HistogramVec
}

var _ ports.MetricsSink = (*PrometheusCollector)(nil)

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		streamsActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "playgrid_streams_active",
			Help: "Number of registered streams per platform",
		}, []string{"platform"}),

		effectiveVolume: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "playgrid_stream_effective_volume",
			Help: "Current effective output volume per stream",
		}, []string{"stream_id"}),

		bufferingEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "playgrid_buffering_events_total",
			Help: "Total buffering events observed per stream",
		}, []string{"stream_id"}),

		stateTransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "playgrid_state_transitions_total",
			Help: "Total playback state transitions by target state",
		}, []string{"state"}),

		recoveriesScheduled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "playgrid_recoveries_scheduled_total",
			Help: "Recovery retries scheduled by error kind",
		}, []string{"error_kind"}),

		recoveryOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "playgrid_recovery_outcomes_total",
			Help: "Recovery episode outcomes by error kind and result",
		}, []string{"error_kind", "outcome"}),

		adaptiveChangesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "playgrid_adaptive_quality_changes_total",
			Help: "Adaptive quality changes by direction",
		}, []string{"direction"}),

		surfacesSuspended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "playgrid_surfaces_suspended_total",
			Help: "Rendering surfaces suspended to reclaim resources",
		}),

		loadDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "playgrid_stream_load_duration_seconds",
			Help:    "Time from load dispatch to the ready signal",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"platform"}),
	}
}

func (c *PrometheusCollector) StreamRegistered(platform domain.Platform) {
	c.streamsActive.WithLabelValues(string(platform)).Inc()
}

func (c *PrometheusCollector) StreamUnregistered(platform domain.Platform) {
	c.streamsActive.WithLabelValues(string(platform)).Dec()
}

func (c *PrometheusCollector) PlaybackStateChanged(id domain.StreamID, state domain.PlaybackState) {
	c.stateTransitionsTotal.WithLabelValues(string(state)).Inc()
}

func (c *PrometheusCollector) BufferingEvent(id domain.StreamID) {
	c.bufferingEventsTotal.WithLabelValues(string(id)).Inc()
}

func (c *PrometheusCollector) LoadDuration(platform domain.Platform, d time.Duration) {
	c.loadDuration.WithLabelValues(string(platform)).Observe(d.Seconds())
}

func (c *PrometheusCollector) RecoveryScheduled(kind domain.ErrorKind) {
	c.recoveriesScheduled.WithLabelValues(string(kind)).Inc()
}

func (c *PrometheusCollector) RecoveryOutcome(kind domain.ErrorKind, success bool) {
	outcome := "failed"
	if success {
		outcome = "recovered"
	}
	c.recoveryOutcomes.WithLabelValues(string(kind), outcome).Inc()
}

func (c *PrometheusCollector) AdaptiveQualityChange(from, to domain.QualityLevel) {
	direction := "downgrade"
	if from.Below(to) {
		direction = "upgrade"
	}
	c.adaptiveChangesTotal.WithLabelValues(direction).Inc()
}

func (c *PrometheusCollector) SurfacesSuspended(count int) {
	c.surfacesSuspended.Add(float64(count))
}

func (c *PrometheusCollector) EffectiveVolume(id domain.StreamID, volume float64) {
	c.effectiveVolume.WithLabelValues(string(id)).Set(volume)
}
