package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	tier string
	err  error
}

func (s *stubResolver) PlanTier(ctx context.Context, orgID string) (string, error) {
	return s.tier, s.err
}

type failingStore struct{}

func (f *failingStore) Usage(ctx context.Context, orgID, service string, now time.Time) (Usage, error) {
	return Usage{}, errors.New("connection refused")
}

func (f *failingStore) Increment(ctx context.Context, orgID, service string, now time.Time) error {
	return errors.New("connection refused")
}

func testPlans() PlanTable {
	return PlanTable{
		"free": {
			"poster_generation": {Monthly: 10, Daily: 2},
		},
		"enterprise": {
			"default": {Monthly: 0, Daily: 0},
		},
	}
}

func newTestGate(plans PlanTable, resolver PlanResolver, store UsageStore, now time.Time) *Gate {
	g := NewGate(plans, resolver, store)
	g.now = func() time.Time { return now }
	return g
}

func TestGateEnforcesDailyThenMonthlyCaps(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	store := NewMemoryUsage()
	gate := newTestGate(testPlans(), &stubResolver{tier: "free"}, store, now)

	// free plan: 2 per day, 10 per month
	for i := 0; i < 2; i++ {
		status := gate.Check(ctx, "org-1", "poster_generation")
		require.True(t, status.WithinLimits)
		gate.Increment(ctx, "org-1", "poster_generation")
	}

	status := gate.Check(ctx, "org-1", "poster_generation")
	require.False(t, status.WithinLimits)
	require.True(t, status.DailyExceeded)
	require.False(t, status.MonthlyExceeded)
	require.Equal(t, 0, status.RemainingDaily)
	require.Equal(t, 8, status.RemainingMonthly)
	require.Equal(t, "free", status.Plan)
	require.Equal(t, "poster_generation", status.Service)
}

func TestGateMonthlyCapBlocksAcrossDays(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryUsage()

	// burn 2 per day for 5 days: monthly cap of 10 reached
	for day := 1; day <= 5; day++ {
		now := time.Date(2025, 6, day, 12, 0, 0, 0, time.UTC)
		gate := newTestGate(testPlans(), &stubResolver{tier: "free"}, store, now)
		for i := 0; i < 2; i++ {
			gate.Increment(ctx, "org-1", "poster_generation")
		}
	}

	// day 6: daily usage is fresh but the monthly cap is exhausted
	now := time.Date(2025, 6, 6, 12, 0, 0, 0, time.UTC)
	gate := newTestGate(testPlans(), &stubResolver{tier: "free"}, store, now)

	status := gate.Check(ctx, "org-1", "poster_generation")
	require.False(t, status.WithinLimits)
	require.True(t, status.MonthlyExceeded)
	require.False(t, status.DailyExceeded)
	require.Equal(t, 0, status.RemainingMonthly)
	require.Equal(t, 2, status.RemainingDaily)
}

func TestGateZeroCapMeansUnlimited(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	store := NewMemoryUsage()
	gate := newTestGate(testPlans(), &stubResolver{tier: "enterprise"}, store, now)

	for i := 0; i < 1000; i++ {
		gate.Increment(ctx, "org-1", "poster_generation")
	}

	status := gate.Check(ctx, "org-1", "poster_generation")
	require.True(t, status.WithinLimits)
	require.Equal(t, -1, status.RemainingMonthly)
	require.Equal(t, -1, status.RemainingDaily)
}

func TestGateUnknownTierFallsBackToFree(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	store := NewMemoryUsage()
	gate := newTestGate(testPlans(), &stubResolver{tier: ""}, store, now)

	status := gate.Check(ctx, "org-1", "poster_generation")
	require.True(t, status.WithinLimits)
	require.Equal(t, "free", status.Plan)
	require.Equal(t, 10, status.RemainingMonthly)
}

func TestGateFailsOpenOnResolverError(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	gate := newTestGate(testPlans(), &stubResolver{err: errors.New("db down")}, NewMemoryUsage(), now)

	status := gate.Check(ctx, "org-1", "poster_generation")
	require.True(t, status.WithinLimits)
	require.Equal(t, -1, status.RemainingMonthly)
	require.Equal(t, -1, status.RemainingDaily)
}

func TestGateFailsOpenOnStoreError(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	gate := newTestGate(testPlans(), &stubResolver{tier: "free"}, &failingStore{}, now)

	status := gate.Check(ctx, "org-1", "poster_generation")
	require.True(t, status.WithinLimits)
	require.Equal(t, "free", status.Plan)

	// increment errors are swallowed
	gate.Increment(ctx, "org-1", "poster_generation")
}
