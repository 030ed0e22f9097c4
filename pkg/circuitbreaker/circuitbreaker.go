package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Normal operation, requests pass through
	StateOpen                  // Circuit is open, requests fail immediately
	StateHalfOpen              // Testing if the target recovered, limited probes allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration
type Config struct {
	FailureThreshold int           // Number of failures before opening circuit
	SuccessThreshold int           // Number of successes in half-open state to close circuit
	Timeout          time.Duration // Time to wait before transitioning from open to half-open
	MaxProbes        int           // Max probes allowed in half-open state
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		MaxProbes:        3,
	}
}

// Breaker tracks the health of one target (for this engine: one platform's
// embed host) and rejects work while the target keeps failing.
type Breaker struct {
	config Config

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	probes          int
	lastFailureTime time.Time
	stateChangeTime time.Time

	onStateChange func(from, to State)
}

// New creates a new breaker with the given configuration
func New(config Config) *Breaker {
	return &Breaker{
		config:          config,
		state:           StateClosed,
		stateChangeTime: time.Now(),
	}
}

// OnStateChange sets a callback invoked whenever the breaker changes state.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Allow reports whether work against the target may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	if b.state == StateOpen {
		if now.Sub(b.stateChangeTime) >= b.config.Timeout {
			b.transitionTo(StateHalfOpen)
			b.probes++
			return true
		}
		return false
	}

	if b.state == StateHalfOpen {
		if b.probes >= b.config.MaxProbes {
			return false
		}
		b.probes++
		return true
	}

	return true
}

// RecordFailure records a failed attempt against the target.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = time.Now()
	b.successCount = 0

	if b.state == StateClosed && b.failureCount >= b.config.FailureThreshold {
		b.transitionTo(StateOpen)
	} else if b.state == StateHalfOpen {
		// Any failure in half-open goes back to open.
		b.transitionTo(StateOpen)
	}
}

// RecordSuccess records a successful attempt against the target.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successCount++
	b.failureCount = 0

	if b.state == StateHalfOpen && b.successCount >= b.config.SuccessThreshold {
		b.transitionTo(StateClosed)
	}
}

func (b *Breaker) transitionTo(newState State) {
	if b.state == newState {
		return
	}

	oldState := b.state
	b.state = newState
	b.stateChangeTime = time.Now()
	b.failureCount = 0
	b.successCount = 0
	b.probes = 0

	if b.onStateChange != nil {
		go b.onStateChange(oldState, newState)
	}
}

// GetState returns the current state
func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats holds circuit breaker statistics
type Stats struct {
	State           State
	FailureCount    int
	SuccessCount    int
	Probes          int
	LastFailureTime time.Time
	StateChangeTime time.Time
}

// GetStats returns current circuit breaker statistics
func (b *Breaker) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		State:           b.state,
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		Probes:          b.probes,
		LastFailureTime: b.lastFailureTime,
		StateChangeTime: b.stateChangeTime,
	}
}

// Reset resets the breaker to closed state
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionTo(StateClosed)
}
