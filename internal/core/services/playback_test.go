package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"playgrid/internal/core/domain"
	"playgrid/internal/infrastructure/monitoring"
	"playgrid/pkg/backoff"
)

type engineFixture struct {
	*registryFixture
	engine   *PlaybackEngine
	surface  *fakeSurface
	recovery *RecoveryCoordinatorService
}

func newEngineFixture(t *testing.T, cfg EngineConfig) *engineFixture {
	base := newRegistryFixture(t)
	logger := zaptest.NewLogger(t).Sugar()
	ctx := context.Background()

	session := testSession("alpha")
	_, err := base.registry.RegisterStream(ctx, session)
	require.NoError(t, err)

	surface := newFakeSurface("surf-1", "alpha")
	base.pool.Register(surface, "alpha")

	// Recovery delays are long enough that nothing fires during a test run.
	policy := backoff.Config{BaseDelay: time.Minute, MaxDelay: time.Minute, MaxRetries: 3, JitterFraction: 0}
	recovery := NewRecoveryCoordinatorService(
		policy, time.Hour,
		NewStrategyTable(NewEmbedBuilder("")),
		base.publisher,
		monitoring.NoopCollector{},
		logger,
	)

	engine := NewPlaybackEngine(
		session, cfg, DefaultAdaptiveConfig(),
		base.registry, base.pool, NewEmbedBuilder(""),
		recovery, base.publisher, monitoring.NoopCollector{},
		logger,
	)
	engine.Start()
	t.Cleanup(func() {
		engine.Close()
		recovery.Close()
	})

	return &engineFixture{registryFixture: base, engine: engine, surface: surface, recovery: recovery}
}

func (f *engineFixture) playbackState(t *testing.T) domain.PlaybackState {
	t.Helper()
	state, err := f.registry.GetState(context.Background(), "alpha")
	require.NoError(t, err)
	return state.PlaybackState
}

func (f *engineFixture) waitForState(t *testing.T, want domain.PlaybackState) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return f.playbackState(t) == want
	}, 2*time.Second, 5*time.Millisecond, "never reached state %s", want)
}

func TestPlaybackEngine_LoadDispatchesEmbed(t *testing.T) {
	f := newEngineFixture(t, DefaultEngineConfig())

	require.NoError(t, f.engine.Load(context.Background()))
	assert.Equal(t, domain.StateLoading, f.playbackState(t))

	cmd, ok := f.surface.lastCommand()
	require.True(t, ok)
	assert.Equal(t, domain.CommandLoad, cmd.Type)
	require.NotNil(t, cmd.Embed)
	assert.Contains(t, cmd.Embed.TargetURL, "player.twitch.tv")
	assert.Contains(t, cmd.Embed.TargetURL, "channel=alpha")
}

func TestPlaybackEngine_ReadyEventCompletesLoad(t *testing.T) {
	f := newEngineFixture(t, DefaultEngineConfig())
	require.NoError(t, f.engine.Load(context.Background()))

	f.engine.HandleSurfaceEvent(domain.SurfaceEvent{Type: domain.SurfaceEventReady, StreamID: "alpha"})

	f.waitForState(t, domain.StateReady)
	assert.Eventually(t, func() bool {
		return len(f.publisher.byType(domain.EngineEventReady)) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPlaybackEngine_LoadTimeoutSchedulesRecovery(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.LoadTimeout = 30 * time.Millisecond
	f := newEngineFixture(t, cfg)

	require.NoError(t, f.engine.Load(context.Background()))

	f.waitForState(t, domain.StateError)
	assert.Eventually(t, func() bool {
		events := f.publisher.byType(domain.EngineEventRecoveryScheduled)
		return len(events) == 1 && events[0].ErrorKind == domain.ErrKindLoadTimeout
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPlaybackEngine_PlayPauseAreIdempotent(t *testing.T) {
	f := newEngineFixture(t, DefaultEngineConfig())
	ctx := context.Background()

	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StateLoading))
	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StateReady))
	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StatePlaying))

	before := len(f.surface.sent())
	require.NoError(t, f.engine.Play(ctx))
	assert.Len(t, f.surface.sent(), before, "play while playing must not send a command")

	require.NoError(t, f.engine.Pause(ctx))
	cmd, ok := f.surface.lastCommand()
	require.True(t, ok)
	assert.Equal(t, domain.CommandPause, cmd.Type)
}

func TestPlaybackEngine_ManualQualityCooldown(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.QualityCooldown = time.Minute
	f := newEngineFixture(t, cfg)
	ctx := context.Background()

	require.NoError(t, f.engine.SetQuality(ctx, domain.QualityMedium, false))

	err := f.engine.SetQuality(ctx, domain.QualityLow, false)
	assert.ErrorIs(t, err, domain.ErrQualityCooldown)

	// Adaptive changes bypass the cooldown entirely.
	require.NoError(t, f.engine.SetQuality(ctx, domain.QualityLow, true))

	state, err := f.registry.GetState(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, domain.QualityLow, state.CurrentQuality)
	assert.Len(t, f.publisher.byType(domain.EngineEventAdaptiveQualityChange), 1)
}

func TestPlaybackEngine_AutoStreamUpgradesAfterAdaptiveDowngrade(t *testing.T) {
	f := newEngineFixture(t, DefaultEngineConfig())
	ctx := context.Background()

	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StateLoading))
	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StateReady))
	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StatePlaying))

	// A weak network drives the auto stream down.
	f.engine.adaptive.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradePoor, BandwidthMbps: 0.8})
	f.engine.evaluateQuality()

	state, err := f.registry.GetState(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, domain.QualityMobile, state.CurrentQuality)
	require.False(t, state.QualityPinned, "adaptive change must not pin an auto stream")

	// The network recovers; the stream is still in auto mode and climbs back.
	f.engine.adaptive.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradeExcellent, BandwidthMbps: 50})
	f.engine.evaluateQuality()

	state, err = f.registry.GetState(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, domain.QualitySource, state.CurrentQuality)
}

func TestPlaybackEngine_ManualPinStillBlocksAdaptiveChanges(t *testing.T) {
	f := newEngineFixture(t, DefaultEngineConfig())
	ctx := context.Background()

	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StateLoading))
	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StateReady))
	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StatePlaying))

	require.NoError(t, f.engine.SetQuality(ctx, domain.QualityMedium, false))

	f.engine.adaptive.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradeExcellent, BandwidthMbps: 50})
	f.engine.evaluateQuality()

	state, err := f.registry.GetState(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, domain.QualityMedium, state.CurrentQuality, "pinned stream must hold its level")
	assert.True(t, state.QualityPinned)
}

func TestPlaybackEngine_RetryCeiling(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.MaxRetries = 1
	f := newEngineFixture(t, cfg)
	ctx := context.Background()

	require.NoError(t, f.engine.Retry(ctx))

	err := f.engine.Retry(ctx)
	assert.ErrorIs(t, err, domain.ErrRetryCeiling)
	assert.Equal(t, domain.StateError, f.playbackState(t))
	assert.NotEmpty(t, f.publisher.byType(domain.EngineEventError))
}

func TestPlaybackEngine_BufferingFeedsAdaptiveTelemetry(t *testing.T) {
	f := newEngineFixture(t, DefaultEngineConfig())
	ctx := context.Background()

	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StateLoading))
	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StateReady))
	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StatePlaying))

	f.engine.HandleSurfaceEvent(domain.SurfaceEvent{Type: domain.SurfaceEventBuffering, StreamID: "alpha"})

	f.waitForState(t, domain.StateBuffering)
	assert.Eventually(t, func() bool {
		return f.engine.adaptive.RecentBufferingCount(time.Now()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPlaybackEngine_HealthMetricsUpdateNetworkEstimate(t *testing.T) {
	f := newEngineFixture(t, DefaultEngineConfig())

	f.engine.HandleSurfaceEvent(domain.SurfaceEvent{
		Type:     domain.SurfaceEventHealthMetrics,
		StreamID: "alpha",
		Metrics: &domain.HealthMetrics{
			BandwidthMbps:  6.0,
			FrameDropRatio: 0.01,
			ConnectionType: "wifi",
			EmbedPresent:   true,
		},
	})

	assert.Eventually(t, func() bool {
		events := f.publisher.byType(domain.EngineEventNetworkQualityChanged)
		if len(events) != 1 {
			return false
		}
		return events[0].Estimate != nil && events[0].Estimate.Grade == domain.GradeExcellent
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPlaybackEngine_MissedProbesForceEmbeddingLost(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.HealthProbeInterval = 20 * time.Millisecond
	cfg.HealthProbeMisses = 2
	f := newEngineFixture(t, cfg)
	ctx := context.Background()

	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StateLoading))
	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StateReady))
	require.NoError(t, f.registry.SetPlaybackState(ctx, "alpha", domain.StatePlaying))

	// No health metrics arrive, so consecutive probes go unanswered.
	f.waitForState(t, domain.StateError)
	assert.Eventually(t, func() bool {
		events := f.publisher.byType(domain.EngineEventRecoveryScheduled)
		return len(events) >= 1 && events[0].ErrorKind == domain.ErrKindEmbeddingLost
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPlaybackEngine_RecoveryWithAlternateURL(t *testing.T) {
	f := newEngineFixture(t, DefaultEngineConfig())
	ctx := context.Background()

	f.engine.ApplyRecovery(ctx, RecoveryAction{
		StreamID:  "alpha",
		Strategy:  domain.RecoveryStrategy{Name: "mobile-site", Kind: domain.StrategyAlternateURL},
		TargetURL: "https://m.twitch.tv/alpha",
	})

	f.engine.mu.Lock()
	current := f.engine.currentURL
	f.engine.mu.Unlock()
	assert.Equal(t, "https://m.twitch.tv/alpha", current)
	assert.Equal(t, domain.StateLoading, f.playbackState(t))
}

func TestPlaybackEngine_ClearCacheRecovery(t *testing.T) {
	f := newEngineFixture(t, DefaultEngineConfig())

	f.engine.ApplyRecovery(context.Background(), RecoveryAction{
		StreamID:   "alpha",
		Strategy:   domain.RecoveryStrategy{Name: "clear-cache", Kind: domain.StrategyClearCache},
		ClearCache: true,
	})

	var sawClear bool
	for _, cmd := range f.surface.sent() {
		if cmd.Type == domain.CommandClearCache {
			sawClear = true
		}
	}
	assert.True(t, sawClear)
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		name    string
		metrics domain.HealthMetrics
		want    domain.NetworkGrade
	}{
		{"wifi clean", domain.HealthMetrics{ConnectionType: "wifi", FrameDropRatio: 0.02}, domain.GradeExcellent},
		{"cellular clean", domain.HealthMetrics{ConnectionType: "cellular", FrameDropRatio: 0.0}, domain.GradeGood},
		{"3g", domain.HealthMetrics{ConnectionType: "3g"}, domain.GradeFair},
		{"2g", domain.HealthMetrics{ConnectionType: "2g"}, domain.GradePoor},
		{"unknown link", domain.HealthMetrics{ConnectionType: "satellite"}, domain.GradeGood},
		{"wifi moderate drops", domain.HealthMetrics{ConnectionType: "wifi", FrameDropRatio: 0.15}, domain.GradeGood},
		{"wifi heavy drops", domain.HealthMetrics{ConnectionType: "wifi", FrameDropRatio: 0.30}, domain.GradePoor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gradeFor(&tt.metrics))
		})
	}
}
