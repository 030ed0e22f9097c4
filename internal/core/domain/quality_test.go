package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityLevel_Ordering(t *testing.T) {
	assert.True(t, QualityMobile.Below(QualityLow))
	assert.True(t, QualityLow.Below(QualitySource))
	assert.False(t, QualitySource.Below(QualityHigh))
	assert.False(t, QualityHigh.Below(QualityHigh))

	// Auto takes no part in the ordering.
	assert.False(t, QualityAuto.Below(QualityHigh))
	assert.False(t, QualityHigh.Below(QualityAuto))
	assert.False(t, QualityAuto.Ordered())
	assert.Equal(t, -1, QualityAuto.Rank())
}

func TestQualityLevel_Valid(t *testing.T) {
	for _, level := range OrderedQualities {
		assert.True(t, level.Valid(), "level %s", level)
	}
	assert.True(t, QualityAuto.Valid())
	assert.False(t, QualityLevel("4k").Valid())
}

func TestMinQuality(t *testing.T) {
	assert.Equal(t, QualityLow, MinQuality(QualityLow, QualityHigh))
	assert.Equal(t, QualityLow, MinQuality(QualityHigh, QualityLow))
	assert.Equal(t, QualityMedium, MinQuality(QualityMedium, QualityMedium))

	// An unordered side yields the other side.
	assert.Equal(t, QualityHigh, MinQuality(QualityAuto, QualityHigh))
	assert.Equal(t, QualityHigh, MinQuality(QualityHigh, QualityAuto))
}

func TestNetworkEstimate_Equivalent(t *testing.T) {
	base := NetworkEstimate{Grade: GradeGood, BandwidthMbps: 4.0, FrameDropRatio: 0.05}

	assert.True(t, base.Equivalent(NetworkEstimate{Grade: GradeGood, BandwidthMbps: 6.0, FrameDropRatio: 0.06}))
	assert.False(t, base.Equivalent(NetworkEstimate{Grade: GradeFair, BandwidthMbps: 4.0, FrameDropRatio: 0.05}))
	assert.False(t, base.Equivalent(NetworkEstimate{Grade: GradeGood, BandwidthMbps: 4.0, FrameDropRatio: 0.08}))
}
