package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Config holds the retry-backoff parameters for one recovery policy.
type Config struct {
	BaseDelay      time.Duration // delay before the first retry
	MaxDelay       time.Duration // cap applied after exponential growth
	MaxRetries     int           // attempt ceiling
	JitterFraction float64       // ±fraction of random variation (0.2 = ±20%)
}

// DefaultConfig returns the engine's default backoff policy.
func DefaultConfig() Config {
	return Config{
		BaseDelay:      2 * time.Second,
		MaxDelay:       30 * time.Second,
		MaxRetries:     3,
		JitterFraction: 0.2,
	}
}

// Delay returns the pre-jitter delay for the given attempt number
// (0-based): base × 2^attempt, capped at MaxDelay. Monotonically
// non-decreasing in attempt.
func Delay(cfg Config, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	return time.Duration(d)
}

// DelayWithJitter applies ±JitterFraction random variation to Delay,
// still bounded by MaxDelay.
func DelayWithJitter(cfg Config, attempt int) time.Duration {
	d := Delay(cfg, attempt)
	if cfg.JitterFraction <= 0 {
		return d
	}
	spread := float64(d) * cfg.JitterFraction
	jittered := float64(d) + (rand.Float64()*2-1)*spread
	if jittered < 0 {
		jittered = 0
	}
	if jittered > float64(cfg.MaxDelay) {
		jittered = float64(cfg.MaxDelay)
	}
	return time.Duration(jittered)
}

// ShouldRetry reports whether another attempt is allowed: the attempt count
// must be under the ceiling AND the episode must not have outlived
// MaxDelay × MaxRetries. Pure function of its inputs.
func ShouldRetry(cfg Config, attemptCount int, startedAt, now time.Time) bool {
	if attemptCount >= cfg.MaxRetries {
		return false
	}
	if now.Sub(startedAt) > cfg.MaxDelay*time.Duration(cfg.MaxRetries) {
		return false
	}
	return true
}
