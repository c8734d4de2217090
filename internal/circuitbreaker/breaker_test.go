package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errProvider = errors.New("provider error")

func failNTimes(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Call(func() error { return errProvider })
	}
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := New(Config{MaxFailures: 3, CooldownSeconds: 30})

	failNTimes(cb, 2)
	require.Equal(t, StateClosed, cb.State())

	failNTimes(cb, 1)
	require.Equal(t, StateOpen, cb.State())

	// open circuit fails fast
	err := cb.Call(func() error { return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{MaxFailures: 3, CooldownSeconds: 30})

	failNTimes(cb, 2)
	require.NoError(t, cb.Call(func() error { return nil }))

	// the counter restarted, so two more failures stay closed
	failNTimes(cb, 2)
	require.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	cb := New(Config{MaxFailures: 1, CooldownSeconds: 30, HalfOpenSuccess: 1})

	failNTimes(cb, 1)
	require.Equal(t, StateOpen, cb.State())

	// age the last failure past the cooldown
	cb.lastFailureTime = time.Now().Add(-time.Minute)

	require.NoError(t, cb.Call(func() error { return nil }))
	require.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := New(Config{MaxFailures: 1, CooldownSeconds: 30})

	failNTimes(cb, 1)
	cb.lastFailureTime = time.Now().Add(-time.Minute)

	err := cb.Call(func() error { return errProvider })
	require.ErrorIs(t, err, errProvider)
	require.Equal(t, StateOpen, cb.State())
}

func TestBreakerReset(t *testing.T) {
	cb := New(Config{MaxFailures: 1, CooldownSeconds: 30})

	failNTimes(cb, 1)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	require.Equal(t, StateClosed, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
}
