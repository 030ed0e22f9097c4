package domain

import "time"

// ErrorKind classifies playback failures for recovery strategy selection.
// Kinds, not Go error types: the same kind can arrive wrapped in different
// transport errors.
type ErrorKind string

const (
	ErrKindNetwork           ErrorKind = "networkError"
	ErrKindCORSBlocked       ErrorKind = "corsBlocked"
	ErrKindEmbedNotSupported ErrorKind = "embedNotSupported"
	ErrKindStreamOffline     ErrorKind = "streamOffline"
	ErrKindLoadTimeout       ErrorKind = "loadTimeout"
	ErrKindInvalidURL        ErrorKind = "invalidURL"
	ErrKindPlatformError     ErrorKind = "platformError"
	ErrKindEmbeddingLost     ErrorKind = "embeddingLost"
	ErrKindUnknown           ErrorKind = "unknown"
)

// RecoveryAttempt tracks one stream's in-flight recovery episode. Owned
// exclusively by the recovery coordinator; garbage-collected after an hour.
type RecoveryAttempt struct {
	StreamID        StreamID
	Platform        Platform
	ErrorKind       ErrorKind
	AttemptCount    int
	StartedAt       time.Time
	OriginalURL     string
	TriedStrategies []string
}

// RecoveryStrategyKind says what a selected strategy asks the engine to do.
type RecoveryStrategyKind string

const (
	// StrategyAlternateURL substitutes a new embed target before retrying.
	StrategyAlternateURL RecoveryStrategyKind = "alternate_url"
	// StrategyPlainRetry reloads the original URL unchanged.
	StrategyPlainRetry RecoveryStrategyKind = "plain_retry"
	// StrategyClearCache purges surface site data, then retries.
	StrategyClearCache RecoveryStrategyKind = "clear_cache"
)

// RecoveryStrategy is one step in a platform's fallback priority order.
type RecoveryStrategy struct {
	Name string
	Kind RecoveryStrategyKind
	// Rewrite produces the replacement target URL for StrategyAlternateURL.
	Rewrite func(originalURL string) string
}

// RecoveryStatus is the immediate result of a RecoverFromError call.
type RecoveryStatus string

const (
	RecoveryScheduled         RecoveryStatus = "scheduled"
	RecoveryAlreadyInProgress RecoveryStatus = "alreadyInProgress"
	RecoveryFailed            RecoveryStatus = "failed"
)

// RecoveryResult reports how the coordinator handled a failure.
type RecoveryResult struct {
	Status   RecoveryStatus
	Strategy string
	Delay    time.Duration
	Reason   string
}
