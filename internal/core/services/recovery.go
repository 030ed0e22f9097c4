package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
	"playgrid/pkg/backoff"
	"playgrid/pkg/cache"
	"playgrid/pkg/circuitbreaker"
)

// RecoveryAction is what the coordinator asks the playback side to execute
// once a scheduled retry fires.
type RecoveryAction struct {
	StreamID   domain.StreamID
	Strategy   domain.RecoveryStrategy
	TargetURL  string
	ClearCache bool
}

// RecoveryCoordinatorService converts observed failures into bounded,
// backed-off retry plans with platform-specific fallback strategies. Attempt
// records are owned exclusively by the coordinator and age out of the cache
// after the configured TTL, after which a stream gets a fresh episode.
type RecoveryCoordinatorService struct {
	policy    backoff.Config
	table     *StrategyTable
	attempts  *cache.Cache
	publisher ports.EventPublisher
	metrics   ports.MetricsSink
	logger    *zap.SugaredLogger

	mu       sync.Mutex
	timers   map[domain.StreamID]*time.Timer
	breakers map[domain.Platform]*circuitbreaker.Breaker
	closed   bool

	// perform executes a scheduled recovery action. streamAlive lets a timer
	// firing just after cancellation verify the stream still exists.
	perform     func(ctx context.Context, action RecoveryAction)
	streamAlive func(id domain.StreamID) bool
}

var _ ports.RecoveryCoordinator = (*RecoveryCoordinatorService)(nil)

func NewRecoveryCoordinatorService(
	policy backoff.Config,
	attemptTTL time.Duration,
	table *StrategyTable,
	publisher ports.EventPublisher,
	metrics ports.MetricsSink,
	logger *zap.SugaredLogger,
) *RecoveryCoordinatorService {
	return &RecoveryCoordinatorService{
		policy:    policy,
		table:     table,
		attempts:  cache.New(attemptTTL),
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		timers:    make(map[domain.StreamID]*time.Timer),
		breakers:  make(map[domain.Platform]*circuitbreaker.Breaker),
	}
}

// SetHooks wires the execution callbacks. Must be called before the first
// RecoverFromError.
func (c *RecoveryCoordinatorService) SetHooks(perform func(ctx context.Context, action RecoveryAction), streamAlive func(id domain.StreamID) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.perform = perform
	c.streamAlive = streamAlive
}

// RecoverFromError handles one observed failure. Returns alreadyInProgress
// when a retry for the stream is pending, failed when the ceiling is
// exhausted or no strategy applies, and scheduled otherwise.
func (c *RecoveryCoordinatorService) RecoverFromError(ctx context.Context, id domain.StreamID, platform domain.Platform, kind domain.ErrorKind, originalURL string) domain.RecoveryResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.RecoveryResult{Status: domain.RecoveryFailed, Reason: "coordinator closed"}
	}
	if _, pending := c.timers[id]; pending {
		return domain.RecoveryResult{Status: domain.RecoveryAlreadyInProgress}
	}

	// Repeated failures against one platform's embed host trip a breaker
	// so the engine stops hammering a host-wide outage.
	breaker := c.breakerFor(platform)
	breaker.RecordFailure()
	if !breaker.Allow() {
		c.metrics.RecoveryOutcome(kind, false)
		c.logger.Warnw("platform circuit open, recovery rejected",
			"stream_id", id,
			"platform", platform,
		)
		return domain.RecoveryResult{Status: domain.RecoveryFailed, Reason: domain.ErrPlatformUnhealthy.Error()}
	}

	now := time.Now()
	attempt := c.attemptFor(id)
	if attempt == nil {
		attempt = &domain.RecoveryAttempt{
			StreamID:    id,
			Platform:    platform,
			ErrorKind:   kind,
			StartedAt:   now,
			OriginalURL: originalURL,
		}
	}

	if !backoff.ShouldRetry(c.policy, attempt.AttemptCount, attempt.StartedAt, now) {
		c.attempts.Set(string(id), attempt)
		c.metrics.RecoveryOutcome(kind, false)
		c.publishLocked(ctx, domain.EngineEvent{
			Type:      domain.EngineEventRecoveryFailed,
			StreamID:  id,
			ErrorKind: kind,
			Message:   "retry ceiling exhausted",
		})
		c.logger.Warnw("recovery ceiling exhausted",
			"stream_id", id,
			"error_kind", kind,
			"attempts", attempt.AttemptCount,
		)
		return domain.RecoveryResult{Status: domain.RecoveryFailed, Reason: "retry ceiling exhausted"}
	}

	strategy, ok := c.nextStrategy(attempt, platform, kind)
	if !ok {
		c.attempts.Set(string(id), attempt)
		c.metrics.RecoveryOutcome(kind, false)
		c.publishLocked(ctx, domain.EngineEvent{
			Type:      domain.EngineEventRecoveryFailed,
			StreamID:  id,
			ErrorKind: kind,
			Message:   "no recovery strategy available",
		})
		return domain.RecoveryResult{Status: domain.RecoveryFailed, Reason: "no recovery strategy available"}
	}

	delay := backoff.DelayWithJitter(c.policy, attempt.AttemptCount)
	attempt.AttemptCount++
	attempt.TriedStrategies = append(attempt.TriedStrategies, strategy.Name)
	c.attempts.Set(string(id), attempt)

	action := RecoveryAction{
		StreamID:   id,
		Strategy:   strategy,
		TargetURL:  originalURL,
		ClearCache: strategy.Kind == domain.StrategyClearCache,
	}
	if strategy.Kind == domain.StrategyAlternateURL && strategy.Rewrite != nil {
		action.TargetURL = strategy.Rewrite(originalURL)
	}

	c.timers[id] = time.AfterFunc(delay, func() {
		c.fire(id, action)
	})

	c.metrics.RecoveryScheduled(kind)
	c.publishLocked(ctx, domain.EngineEvent{
		Type:      domain.EngineEventRecoveryScheduled,
		StreamID:  id,
		ErrorKind: kind,
		Message:   strategy.Name,
	})
	c.logger.Infow("recovery scheduled",
		"stream_id", id,
		"error_kind", kind,
		"strategy", strategy.Name,
		"delay", delay,
		"attempt", attempt.AttemptCount,
	)

	return domain.RecoveryResult{
		Status:   domain.RecoveryScheduled,
		Strategy: strategy.Name,
		Delay:    delay,
	}
}

// CancelRecovery drops the pending retry and the attempt record. Used when
// the caller closes the stream mid-recovery.
func (c *RecoveryCoordinatorService) CancelRecovery(id domain.StreamID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked(id)
	c.attempts.Delete(string(id))
}

// ResetAttempt clears the attempt record so a later failure starts a fresh
// episode. Called on successful playback after a recovery.
func (c *RecoveryCoordinatorService) ResetAttempt(id domain.StreamID) {
	c.mu.Lock()
	if attempt := c.attemptFor(id); attempt != nil {
		c.breakerFor(attempt.Platform).RecordSuccess()
	}
	c.mu.Unlock()
	c.attempts.Delete(string(id))
}

// Close cancels every pending retry and stops the attempt cache.
func (c *RecoveryCoordinatorService) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id := range c.timers {
		c.cancelLocked(id)
	}
	c.attempts.Stop()
}

// AttemptCount reports the current attempt count for a stream, zero when no
// episode is active.
func (c *RecoveryCoordinatorService) AttemptCount(id domain.StreamID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if attempt := c.attemptFor(id); attempt != nil {
		return attempt.AttemptCount
	}
	return 0
}

func (c *RecoveryCoordinatorService) fire(id domain.StreamID, action RecoveryAction) {
	c.mu.Lock()
	delete(c.timers, id)
	perform := c.perform
	alive := c.streamAlive
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}
	if alive != nil && !alive(id) {
		c.logger.Debugw("recovery fired for unregistered stream, skipping", "stream_id", id)
		return
	}
	if perform != nil {
		perform(context.Background(), action)
	}
}

func (c *RecoveryCoordinatorService) cancelLocked(id domain.StreamID) {
	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
}

func (c *RecoveryCoordinatorService) breakerFor(platform domain.Platform) *circuitbreaker.Breaker {
	breaker, ok := c.breakers[platform]
	if !ok {
		breaker = circuitbreaker.New(circuitbreaker.DefaultConfig())
		c.breakers[platform] = breaker
	}
	return breaker
}

func (c *RecoveryCoordinatorService) attemptFor(id domain.StreamID) *domain.RecoveryAttempt {
	value, ok := c.attempts.Get(string(id))
	if !ok {
		return nil
	}
	attempt, ok := value.(*domain.RecoveryAttempt)
	if !ok {
		return nil
	}
	return attempt
}

// nextStrategy picks the first strategy in the platform's fixed priority
// order that has not been tried within this episode.
func (c *RecoveryCoordinatorService) nextStrategy(attempt *domain.RecoveryAttempt, platform domain.Platform, kind domain.ErrorKind) (domain.RecoveryStrategy, bool) {
	for _, candidate := range c.table.For(platform, kind) {
		tried := false
		for _, name := range attempt.TriedStrategies {
			if name == candidate.Name {
				tried = true
				break
			}
		}
		if !tried {
			return candidate, true
		}
	}
	return domain.RecoveryStrategy{}, false
}

func (c *RecoveryCoordinatorService) publishLocked(ctx context.Context, event domain.EngineEvent) {
	if c.publisher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	c.publisher.Publish(ctx, event)
}
