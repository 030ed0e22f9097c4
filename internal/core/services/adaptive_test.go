package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"playgrid/internal/core/domain"
)

func newTestAdaptive(t *testing.T) *AdaptiveController {
	return NewAdaptiveController(DefaultAdaptiveConfig(), zaptest.NewLogger(t).Sugar())
}

func TestAdaptive_NoEstimateNoDecision(t *testing.T) {
	a := newTestAdaptive(t)
	_, ok := a.DetermineOptimalQuality(domain.QualityHigh, false, time.Now())
	assert.False(t, ok)
}

func TestAdaptive_DowngradeOnWeakNetwork(t *testing.T) {
	a := newTestAdaptive(t)
	a.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradeFair, BandwidthMbps: 3.0})

	decision, ok := a.DetermineOptimalQuality(domain.QualityHigh, false, time.Now())
	assert.True(t, ok)
	assert.Equal(t, domain.QualityHigh, decision.From)
	assert.Equal(t, domain.QualityMedium, decision.To)
	assert.False(t, decision.Forced)
}

func TestAdaptive_PinBlocksOrdinaryChanges(t *testing.T) {
	a := newTestAdaptive(t)
	a.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradePoor, BandwidthMbps: 1.0})

	_, ok := a.DetermineOptimalQuality(domain.QualityHigh, true, time.Now())
	assert.False(t, ok)
}

func TestAdaptive_PersistentBufferingForcesDowngradePastPin(t *testing.T) {
	a := newTestAdaptive(t)
	now := time.Now()

	// Network still looks good, so the recommendation alone would not move
	// off the pinned level.
	a.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradeGood, BandwidthMbps: 6.0})

	a.RecordBuffering(now.Add(-40 * time.Second))
	a.RecordBuffering(now.Add(-20 * time.Second))
	_, ok := a.DetermineOptimalQuality(domain.QualityHigh, true, now)
	assert.False(t, ok, "two events inside the window must not force anything")

	a.RecordBuffering(now.Add(-5 * time.Second))
	decision, ok := a.DetermineOptimalQuality(domain.QualityHigh, true, now)
	assert.True(t, ok)
	assert.True(t, decision.Forced)
	assert.Equal(t, domain.QualityHigh, decision.From)
	assert.Equal(t, domain.QualityMedium, decision.To)
}

func TestAdaptive_BufferingEventsAgeOut(t *testing.T) {
	a := newTestAdaptive(t)
	now := time.Now()

	a.RecordBuffering(now.Add(-90 * time.Second))
	a.RecordBuffering(now.Add(-70 * time.Second))
	a.RecordBuffering(now.Add(-10 * time.Second))
	assert.Equal(t, 1, a.RecentBufferingCount(now))
}

func TestAdaptive_UpgradeRequiresQuietBuffering(t *testing.T) {
	a := newTestAdaptive(t)
	now := time.Now()
	a.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradeExcellent, BandwidthMbps: 20})

	a.RecordBuffering(now.Add(-30 * time.Second))
	a.RecordBuffering(now.Add(-10 * time.Second))
	_, ok := a.DetermineOptimalQuality(domain.QualityMedium, false, now)
	assert.False(t, ok, "recent buffering must block the upgrade")

	decision, ok := a.DetermineOptimalQuality(domain.QualityMedium, false, now.Add(55*time.Second))
	assert.True(t, ok)
	assert.Equal(t, domain.QualitySource, decision.To)
	assert.False(t, decision.Forced)
}

func TestAdaptive_RespectsAdvertisedLadder(t *testing.T) {
	a := newTestAdaptive(t)
	a.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradeFair, BandwidthMbps: 3.5})
	a.SetAvailableQualities([]domain.QualityLevel{domain.QualityLow, domain.QualitySource})

	decision, ok := a.DetermineOptimalQuality(domain.QualitySource, false, time.Now())
	assert.True(t, ok)
	assert.Equal(t, domain.QualityLow, decision.To)
}

func TestAdaptive_AutoCurrentAdoptsRecommendation(t *testing.T) {
	a := newTestAdaptive(t)
	a.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradeGood, BandwidthMbps: 6.0})

	decision, ok := a.DetermineOptimalQuality(domain.QualityAuto, false, time.Now())
	assert.True(t, ok)
	assert.Equal(t, domain.QualityHigh, decision.To)
}

func TestAdaptive_UpdateEstimateReportsSignificance(t *testing.T) {
	a := newTestAdaptive(t)

	assert.True(t, a.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradeGood, BandwidthMbps: 5.0, FrameDropRatio: 0.01}))
	assert.False(t, a.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradeGood, BandwidthMbps: 6.0, FrameDropRatio: 0.015}))
	assert.True(t, a.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradeFair, BandwidthMbps: 6.0, FrameDropRatio: 0.015}))
}

func TestAdaptive_ResetClearsTelemetry(t *testing.T) {
	a := newTestAdaptive(t)
	now := time.Now()
	a.UpdateEstimate(domain.NetworkEstimate{Grade: domain.GradePoor})
	a.RecordBuffering(now)

	a.Reset()

	assert.Equal(t, 0, a.RecentBufferingCount(now))
	_, ok := a.DetermineOptimalQuality(domain.QualityHigh, false, now)
	assert.False(t, ok)
}
