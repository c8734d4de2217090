package proxy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBalancer(t *testing.T) {
	for _, name := range []string{"", "round-robin", "round_robin", "least-connections", "random"} {
		b, err := NewBalancer(name)
		require.NoError(t, err, "strategy %q", name)
		require.NotNil(t, b)
	}

	_, err := NewBalancer("weighted")
	require.Error(t, err)
}

func TestRoundRobinCycles(t *testing.T) {
	rr := NewRoundRobin()
	targets := []string{"a", "b", "c"}

	require.Equal(t, "a", rr.Next(targets))
	require.Equal(t, "b", rr.Next(targets))
	require.Equal(t, "c", rr.Next(targets))
	require.Equal(t, "a", rr.Next(targets))

	require.Empty(t, rr.Next(nil))
}

func TestLeastConnectionsPrefersIdleTarget(t *testing.T) {
	lc := NewLeastConnections()
	targets := []string{"a", "b"}

	lc.Increment("a")
	lc.Increment("a")
	lc.Increment("b")

	require.Equal(t, "b", lc.Next(targets))

	lc.Decrement("a")
	lc.Decrement("a")
	require.Equal(t, "a", lc.Next(targets))

	// decrement never goes negative
	lc.Decrement("a")
	lc.Decrement("a")
	require.Equal(t, "a", lc.Next(targets))
}

func TestRandomStaysInSet(t *testing.T) {
	r := NewRandom()
	targets := []string{"a", "b", "c"}

	for i := 0; i < 50; i++ {
		require.Contains(t, targets, r.Next(targets))
	}

	require.Empty(t, r.Next(nil))
}
