package services

import (
	"playgrid/internal/core/domain"
)

// QualityForGrade maps a categorical network grade to the quality level it
// can comfortably sustain.
func QualityForGrade(grade domain.NetworkGrade) domain.QualityLevel {
	switch grade {
	case domain.GradeExcellent:
		return domain.QualitySource
	case domain.GradeGood:
		return domain.QualityHigh
	case domain.GradeFair:
		return domain.QualityMedium
	case domain.GradePoor:
		return domain.QualityLow
	default:
		return domain.QualityMedium
	}
}

// QualityForBandwidth returns the highest quality level whose estimated
// bitrate requirement fits within the measured bandwidth. A zero or negative
// estimate means no measurement yet and maps to the most conservative level.
func QualityForBandwidth(bandwidthMbps float64) domain.QualityLevel {
	if bandwidthMbps <= 0 {
		return domain.QualityMobile
	}
	best := domain.QualityMobile
	for _, level := range domain.OrderedQualities {
		if level.BitrateMbps() <= bandwidthMbps {
			best = level
		}
	}
	return best
}

// RecommendedQuality takes the more conservative of the grade-implied and
// bandwidth-implied levels.
func RecommendedQuality(estimate domain.NetworkEstimate) domain.QualityLevel {
	return domain.MinQuality(QualityForGrade(estimate.Grade), QualityForBandwidth(estimate.BandwidthMbps))
}

// ClampToAvailable snaps a recommendation to the nearest platform-advertised
// level at or below it. An empty advertised list leaves the recommendation
// unchanged; a recommendation below every advertised level snaps up to the
// lowest one offered.
func ClampToAvailable(level domain.QualityLevel, available []domain.QualityLevel) domain.QualityLevel {
	if len(available) == 0 || !level.Ordered() {
		return level
	}

	var below domain.QualityLevel
	var lowest domain.QualityLevel
	for _, candidate := range available {
		if !candidate.Ordered() {
			continue
		}
		if lowest == "" || candidate.Rank() < lowest.Rank() {
			lowest = candidate
		}
		if candidate.Rank() <= level.Rank() {
			if below == "" || candidate.Rank() > below.Rank() {
				below = candidate
			}
		}
	}
	if below != "" {
		return below
	}
	if lowest != "" {
		return lowest
	}
	return level
}
