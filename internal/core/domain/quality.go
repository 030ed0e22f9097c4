package domain

import "math"

// QualityLevel is a totally ordered ladder of playback qualities, plus the
// non-ordered auto mode which delegates selection to the adaptive controller.
type QualityLevel string

const (
	QualityMobile QualityLevel = "mobile"
	QualityLow    QualityLevel = "low"
	QualityMedium QualityLevel = "medium"
	QualityHigh   QualityLevel = "high"
	QualitySource QualityLevel = "source"
	QualityAuto   QualityLevel = "auto"
)

var qualityRank = map[QualityLevel]int{
	QualityMobile: 0,
	QualityLow:    1,
	QualityMedium: 2,
	QualityHigh:   3,
	QualitySource: 4,
}

// qualityBitrateMbps is the estimated bandwidth each level needs.
var qualityBitrateMbps = map[QualityLevel]float64{
	QualityMobile: 0.6,
	QualityLow:    1.5,
	QualityMedium: 3.0,
	QualityHigh:   5.0,
	QualitySource: 8.0,
}

// OrderedQualities lists the ladder from lowest to highest. Auto is excluded.
var OrderedQualities = []QualityLevel{QualityMobile, QualityLow, QualityMedium, QualityHigh, QualitySource}

func (q QualityLevel) Valid() bool {
	if q == QualityAuto {
		return true
	}
	_, ok := qualityRank[q]
	return ok
}

// Ordered reports whether q takes part in the ladder ordering.
func (q QualityLevel) Ordered() bool {
	_, ok := qualityRank[q]
	return ok
}

// Rank returns the ladder position of q, or -1 for auto/unknown levels.
func (q QualityLevel) Rank() int {
	rank, ok := qualityRank[q]
	if !ok {
		return -1
	}
	return rank
}

// BitrateMbps returns the estimated bandwidth requirement for q.
// Auto has no requirement of its own and reports zero.
func (q QualityLevel) BitrateMbps() float64 {
	return qualityBitrateMbps[q]
}

// Below reports whether q is strictly lower than other on the ladder.
func (q QualityLevel) Below(other QualityLevel) bool {
	return q.Ordered() && other.Ordered() && q.Rank() < other.Rank()
}

// MinQuality returns the more conservative of two ordered levels.
func MinQuality(a, b QualityLevel) QualityLevel {
	if !a.Ordered() {
		return b
	}
	if !b.Ordered() {
		return a
	}
	if a.Rank() <= b.Rank() {
		return a
	}
	return b
}

// NetworkGrade is the categorical network condition bucket.
type NetworkGrade string

const (
	GradeExcellent NetworkGrade = "excellent"
	GradeGood      NetworkGrade = "good"
	GradeFair      NetworkGrade = "fair"
	GradePoor      NetworkGrade = "poor"
)

// NetworkEstimate is a sampled view of network conditions for one stream.
type NetworkEstimate struct {
	Grade          NetworkGrade
	BandwidthMbps  float64
	FrameDropRatio float64
}

// Equivalent reports whether two estimates are close enough that a change
// between them should not be announced: same grade and drop-rate delta
// under two percent.
func (e NetworkEstimate) Equivalent(other NetworkEstimate) bool {
	return e.Grade == other.Grade && math.Abs(e.FrameDropRatio-other.FrameDropRatio) < 0.02
}
