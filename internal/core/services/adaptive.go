package services

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"playgrid/internal/core/domain"
)

// AdaptiveConfig tunes the per-stream quality control loop.
type AdaptiveConfig struct {
	SampleInterval      time.Duration
	BufferingWindow     time.Duration
	ForcedDowngradeHits int
	UpgradeBufferingMax int
}

// DefaultAdaptiveConfig returns the production defaults.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		SampleInterval:      15 * time.Second,
		BufferingWindow:     60 * time.Second,
		ForcedDowngradeHits: 3,
		UpgradeBufferingMax: 2,
	}
}

// QualityDecision is one proposal from the adaptive controller.
type QualityDecision struct {
	From   domain.QualityLevel
	To     domain.QualityLevel
	Forced bool
}

// AdaptiveController tracks network and buffering telemetry for a single
// stream and proposes quality changes with hysteresis. It never applies a
// change itself; the owning playback engine does, marking it adaptive.
type AdaptiveController struct {
	cfg    AdaptiveConfig
	logger *zap.SugaredLogger

	mu             sync.Mutex
	estimate       domain.NetworkEstimate
	hasEstimate    bool
	bufferingTimes []time.Time
	available      []domain.QualityLevel
}

func NewAdaptiveController(cfg AdaptiveConfig, logger *zap.SugaredLogger) *AdaptiveController {
	return &AdaptiveController{
		cfg:    cfg,
		logger: logger,
	}
}

// RecordBuffering notes one buffering event at the given time.
func (a *AdaptiveController) RecordBuffering(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bufferingTimes = append(a.bufferingTimes, now)
	a.pruneLocked(now)
}

// UpdateEstimate replaces the rolling network estimate. It reports whether
// the change is significant enough to announce to observers.
func (a *AdaptiveController) UpdateEstimate(estimate domain.NetworkEstimate) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	changed := !a.hasEstimate || !a.estimate.Equivalent(estimate)
	a.estimate = estimate
	a.hasEstimate = true
	return changed
}

// Estimate returns the current network estimate and whether one exists yet.
func (a *AdaptiveController) Estimate() (domain.NetworkEstimate, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.estimate, a.hasEstimate
}

// SetAvailableQualities records the platform-advertised quality ladder.
func (a *AdaptiveController) SetAvailableQualities(levels []domain.QualityLevel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.available = append(a.available[:0], levels...)
}

// RecentBufferingCount returns the number of buffering events inside the
// rolling window ending at now.
func (a *AdaptiveController) RecentBufferingCount(now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked(now)
	return len(a.bufferingTimes)
}

// DetermineOptimalQuality evaluates whether the stream should move off its
// current level. current is the level in effect; pinned reports whether the
// user chose it manually (anything but auto counts as a pin).
//
// A pin blocks adaptive changes unless the forced-downgrade condition holds:
// enough buffering events inside the window. Downgrades are proposed whenever
// the recommendation is strictly lower; upgrades additionally require recent
// buffering to be quiet.
func (a *AdaptiveController) DetermineOptimalQuality(current domain.QualityLevel, pinned bool, now time.Time) (QualityDecision, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hasEstimate {
		return QualityDecision{}, false
	}

	a.pruneLocked(now)
	bufferingHits := len(a.bufferingTimes)
	forced := bufferingHits >= a.cfg.ForcedDowngradeHits

	if pinned && !forced {
		return QualityDecision{}, false
	}

	recommended := ClampToAvailable(RecommendedQuality(a.estimate), a.available)
	if !recommended.Ordered() || !current.Ordered() {
		if current == domain.QualityAuto && recommended.Ordered() {
			return QualityDecision{From: current, To: recommended, Forced: forced}, true
		}
		return QualityDecision{}, false
	}

	if forced && bufferingHits >= a.cfg.ForcedDowngradeHits {
		// Persistent buffering means the recommendation itself may be too
		// optimistic; step below the current level if the recommendation
		// does not already do so.
		if !recommended.Below(current) {
			if stepped, ok := stepDown(current); ok {
				recommended = ClampToAvailable(stepped, a.available)
			}
		}
	}

	switch {
	case recommended.Below(current):
		return QualityDecision{From: current, To: recommended, Forced: forced}, true
	case current.Below(recommended):
		if bufferingHits < a.cfg.UpgradeBufferingMax {
			return QualityDecision{From: current, To: recommended, Forced: false}, true
		}
	}
	return QualityDecision{}, false
}

// Reset clears all telemetry, used when a stream reloads from scratch.
func (a *AdaptiveController) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bufferingTimes = nil
	a.hasEstimate = false
	a.estimate = domain.NetworkEstimate{}
}

func (a *AdaptiveController) pruneLocked(now time.Time) {
	cutoff := now.Add(-a.cfg.BufferingWindow)
	kept := a.bufferingTimes[:0]
	for _, t := range a.bufferingTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	a.bufferingTimes = kept
}

func stepDown(level domain.QualityLevel) (domain.QualityLevel, bool) {
	rank := level.Rank()
	if rank <= 0 {
		return level, false
	}
	return domain.OrderedQualities[rank-1], true
}
