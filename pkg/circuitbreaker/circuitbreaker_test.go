package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Hour, MaxProbes: 1})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		assert.True(t, b.Allow(), "failure %d must not open the circuit", i+1)
	}

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.GetState())
	assert.False(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Hour, MaxProbes: 1})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	assert.Equal(t, StateClosed, b.GetState())
	assert.True(t, b.Allow())
}

func TestBreaker_HalfOpenProbesAndRecovery(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond, MaxProbes: 2})

	b.RecordFailure()
	require.Equal(t, StateOpen, b.GetState())
	require.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)

	// Timeout elapsed: limited probes allowed.
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.GetState())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "probe budget exhausted")

	b.RecordSuccess()
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.GetState())
	assert.True(t, b.Allow())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: 10 * time.Millisecond, MaxProbes: 3})

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.GetState())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.GetState())
	assert.False(t, b.Allow())
}

func TestBreaker_Reset(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour, MaxProbes: 1})

	b.RecordFailure()
	require.Equal(t, StateOpen, b.GetState())

	b.Reset()
	assert.Equal(t, StateClosed, b.GetState())
	assert.True(t, b.Allow())
}

func TestBreaker_Stats(t *testing.T) {
	b := New(DefaultConfig())
	b.RecordFailure()
	b.RecordFailure()

	stats := b.GetStats()
	assert.Equal(t, StateClosed, stats.State)
	assert.Equal(t, 2, stats.FailureCount)
	assert.False(t, stats.LastFailureTime.IsZero())
}
