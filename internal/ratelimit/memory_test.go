package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testKey = Key{OrgID: "org-1", UserID: "user-1", Category: "ai_generation"}

func burstRule() []Rule {
	return []Rule{{Name: "burst", MaxRequests: 10, Window: time.Minute}}
}

func TestMemoryLimiterAdmitsUpToTheLimit(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 10 requests spaced 500ms apart all pass
	for i := 0; i < 10; i++ {
		d, err := limiter.CheckAndRecord(ctx, testKey, burstRule(), base.Add(time.Duration(i)*500*time.Millisecond))
		require.NoError(t, err)
		require.True(t, d.Admitted, "request %d should be admitted", i+1)
	}

	// the 11th lands at t+5s and is rejected; the oldest entry ages
	// out of the window 55s later
	d, err := limiter.CheckAndRecord(ctx, testKey, burstRule(), base.Add(5*time.Second))
	require.NoError(t, err)
	require.False(t, d.Admitted)
	require.Equal(t, "burst", d.Rule)
	require.Equal(t, 10, d.Limit)
	require.Equal(t, 10, d.Current)
	require.Equal(t, 55*time.Second, d.RetryAfter)
}

func TestMemoryLimiterSlidesInsteadOfResetting(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		d, err := limiter.CheckAndRecord(ctx, testKey, burstRule(), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.True(t, d.Admitted)
	}

	// 61s after the first request only that one has expired, so
	// exactly one slot is free. A fixed window would have reset all 10.
	d, err := limiter.CheckAndRecord(ctx, testKey, burstRule(), base.Add(61*time.Second))
	require.NoError(t, err)
	require.True(t, d.Admitted)

	d, err = limiter.CheckAndRecord(ctx, testKey, burstRule(), base.Add(61*time.Second))
	require.NoError(t, err)
	require.False(t, d.Admitted)
}

func TestMemoryLimiterRejectionDoesNotConsumeCapacity(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		_, err := limiter.CheckAndRecord(ctx, testKey, burstRule(), base)
		require.NoError(t, err)
	}

	// hammer the limiter while full
	for i := 0; i < 50; i++ {
		d, err := limiter.CheckAndRecord(ctx, testKey, burstRule(), base.Add(30*time.Second))
		require.NoError(t, err)
		require.False(t, d.Admitted)
	}

	// once the original 10 age out, the full burst is available again:
	// the 50 rejected attempts left no trace
	for i := 0; i < 10; i++ {
		d, err := limiter.CheckAndRecord(ctx, testKey, burstRule(), base.Add(61*time.Second))
		require.NoError(t, err)
		require.True(t, d.Admitted, "request %d after expiry should be admitted", i+1)
	}
}

func TestMemoryLimiterMultiRuleAllOrNothing(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rules := []Rule{
		{Name: "burst", MaxRequests: 3, Window: time.Minute},
		{Name: "sustained", MaxRequests: 5, Window: time.Hour},
	}

	for i := 0; i < 3; i++ {
		d, err := limiter.CheckAndRecord(ctx, testKey, rules, base)
		require.NoError(t, err)
		require.True(t, d.Admitted)
	}

	// burst is exhausted; the rejection must not count against the
	// sustained rule
	d, err := limiter.CheckAndRecord(ctx, testKey, rules, base)
	require.NoError(t, err)
	require.False(t, d.Admitted)
	require.Equal(t, "burst", d.Rule)

	// after the burst window, two sustained slots remain (5 cap, 3 used)
	later := base.Add(2 * time.Minute)
	for i := 0; i < 2; i++ {
		d, err = limiter.CheckAndRecord(ctx, testKey, rules, later)
		require.NoError(t, err)
		require.True(t, d.Admitted)
	}

	d, err = limiter.CheckAndRecord(ctx, testKey, rules, later)
	require.NoError(t, err)
	require.False(t, d.Admitted)
	require.Equal(t, "sustained", d.Rule)
}

func TestMemoryLimiterReportsSmallestViolatedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// rules deliberately out of order
	rules := []Rule{
		{Name: "sustained", MaxRequests: 2, Window: time.Hour},
		{Name: "burst", MaxRequests: 2, Window: time.Minute},
	}

	for i := 0; i < 2; i++ {
		_, err := limiter.CheckAndRecord(ctx, testKey, rules, base)
		require.NoError(t, err)
	}

	// both rules are violated; the burst rule is the one reported
	d, err := limiter.CheckAndRecord(ctx, testKey, rules, base)
	require.NoError(t, err)
	require.False(t, d.Admitted)
	require.Equal(t, "burst", d.Rule)
}

func TestMemoryLimiterIsolatesKeys(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rules := []Rule{{Name: "burst", MaxRequests: 1, Window: time.Minute}}

	variants := []Key{
		{OrgID: "org-1", UserID: "user-1", Category: "ai_generation"},
		{OrgID: "org-1", UserID: "user-2", Category: "ai_generation"},
		{OrgID: "org-2", UserID: "user-1", Category: "ai_generation"},
		{OrgID: "org-1", UserID: "user-1", Category: "browse"},
	}

	for _, key := range variants {
		d, err := limiter.CheckAndRecord(ctx, key, rules, base)
		require.NoError(t, err)
		require.True(t, d.Admitted, "key %s should have its own bucket", key.String())
	}

	d, err := limiter.CheckAndRecord(ctx, variants[0], rules, base)
	require.NoError(t, err)
	require.False(t, d.Admitted)
}

func TestMemoryLimiterSweepEvictsIdleKeys(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := limiter.CheckAndRecord(ctx, Key{OrgID: "idle", UserID: "u", Category: "c"}, burstRule(), base)
	require.NoError(t, err)
	_, err = limiter.CheckAndRecord(ctx, Key{OrgID: "active", UserID: "u", Category: "c"}, burstRule(), base.Add(90*time.Second))
	require.NoError(t, err)

	require.Equal(t, 2, limiter.Len())

	removed := limiter.Sweep(ctx, base.Add(100*time.Second))
	require.Equal(t, 1, removed)
	require.Equal(t, 1, limiter.Len())
}

func TestMemoryLimiterConcurrentAccessNeverOveradmits(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rules := []Rule{{Name: "burst", MaxRequests: 10, Window: time.Minute}}

	var wg sync.WaitGroup
	admitted := make(chan bool, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.CheckAndRecord(ctx, testKey, rules, base)
			if err == nil && d.Admitted {
				admitted <- true
			}
		}()
	}

	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}
	require.Equal(t, 10, count)
}
