package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/craftlab/ai-gateway/internal/config"
	"github.com/craftlab/ai-gateway/internal/quota"
	"github.com/craftlab/ai-gateway/internal/ratelimit"
	"github.com/stretchr/testify/require"
)

type staticResolver string

func (s staticResolver) PlanTier(ctx context.Context, orgID string) (string, error) {
	return string(s), nil
}

type brokenLimiter struct{}

func (b *brokenLimiter) CheckAndRecord(ctx context.Context, key ratelimit.Key, rules []ratelimit.Rule, now time.Time) (*ratelimit.Decision, error) {
	return nil, errors.New("store unavailable")
}

func (b *brokenLimiter) Sweep(ctx context.Context, now time.Time) int { return 0 }

func controllerPolicy() *config.Policy {
	return &config.Policy{
		Scope: []string{"/api/"},
		Routes: []config.RouteRule{
			{Prefix: "/api/v1/posters", Category: "ai_generation", Service: "poster_generation"},
		},
		Limits: map[string][]config.LimitRule{
			"ai_generation": {
				{Name: "burst", MaxRequests: 3, WindowSeconds: 60},
			},
			"general": {
				{Name: "default", MaxRequests: 60, WindowSeconds: 60},
			},
		},
		Plans: quota.PlanTable{
			"free": {
				"poster_generation": {Monthly: 10, Daily: 2},
			},
		},
	}
}

func newTestController(limiter ratelimit.Limiter, tier string) *Controller {
	policy := controllerPolicy()
	gate := quota.NewGate(policy.Plans, staticResolver(tier), quota.NewMemoryUsage())
	ctrl := New(policy, limiter, gate, nil)
	ctrl.now = func() time.Time {
		return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	}
	return ctrl
}

func posterRequest() Request {
	return Request{OrgID: "org-1", UserID: "user-1", Path: "/api/v1/posters/create", Method: "POST"}
}

func TestControllerBypassesOutOfScopePaths(t *testing.T) {
	ctrl := newTestController(ratelimit.NewMemoryLimiter(), "free")

	outcome := ctrl.Admit(context.Background(), Request{OrgID: "org-1", Path: "/health", Method: "GET"})
	require.Equal(t, StateBypassed, outcome.State)
	require.False(t, outcome.Rejected())
}

func TestControllerRejectsMissingOrganization(t *testing.T) {
	ctrl := newTestController(ratelimit.NewMemoryLimiter(), "free")

	outcome := ctrl.Admit(context.Background(), Request{Path: "/api/v1/posters/create", Method: "POST"})
	require.Equal(t, StateRejectedContext, outcome.State)
	require.True(t, outcome.Rejected())
	require.Equal(t, "ai_generation", outcome.Category)
}

func TestControllerAdmitsAndRecordsDispatch(t *testing.T) {
	ctrl := newTestController(ratelimit.NewMemoryLimiter(), "free")
	ctx := context.Background()

	outcome := ctrl.Admit(ctx, posterRequest())
	require.Equal(t, StateAdmitted, outcome.State)
	require.Equal(t, "poster_generation", outcome.Service)

	ctrl.RecordDispatch(ctx, posterRequest(), outcome)
	require.Equal(t, StateUsageRecorded, outcome.State)
}

func TestControllerRateLimitRunsBeforeQuota(t *testing.T) {
	ctrl := newTestController(ratelimit.NewMemoryLimiter(), "free")
	ctx := context.Background()

	// burst cap is 3; daily quota cap is 2 but nothing is charged
	// without a dispatch, so the limiter is what rejects the 4th
	for i := 0; i < 3; i++ {
		outcome := ctrl.Admit(ctx, posterRequest())
		require.Equal(t, StateAdmitted, outcome.State)
	}

	outcome := ctrl.Admit(ctx, posterRequest())
	require.Equal(t, StateRejectedRate, outcome.State)
	require.NotNil(t, outcome.Rate)
	require.Equal(t, "burst", outcome.Rate.Rule)
	require.Nil(t, outcome.Quota)
}

func TestControllerRejectsOnQuota(t *testing.T) {
	ctrl := newTestController(ratelimit.NewMemoryLimiter(), "free")
	ctx := context.Background()

	// two dispatched generations exhaust the free daily cap
	for i := 0; i < 2; i++ {
		outcome := ctrl.Admit(ctx, posterRequest())
		require.Equal(t, StateAdmitted, outcome.State)
		ctrl.RecordDispatch(ctx, posterRequest(), outcome)
	}

	outcome := ctrl.Admit(ctx, posterRequest())
	require.Equal(t, StateRejectedQuota, outcome.State)
	require.NotNil(t, outcome.Quota)
	require.True(t, outcome.Quota.DailyExceeded)
	require.Nil(t, outcome.Rate)
}

func TestControllerRejectionIsNeverCharged(t *testing.T) {
	ctrl := newTestController(ratelimit.NewMemoryLimiter(), "free")
	ctx := context.Background()

	outcome := ctrl.Admit(ctx, posterRequest())
	require.Equal(t, StateAdmitted, outcome.State)
	ctrl.RecordDispatch(ctx, posterRequest(), outcome)

	// rate-limited requests must not touch usage
	for i := 0; i < 2; i++ {
		ctrl.Admit(ctx, posterRequest())
	}
	rejected := ctrl.Admit(ctx, posterRequest())
	require.Equal(t, StateRejectedRate, rejected.State)
	ctrl.RecordDispatch(ctx, posterRequest(), rejected)
	require.Equal(t, StateRejectedRate, rejected.State)
}

func TestControllerAnonymousUsersShareABucket(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter()
	ctrl := newTestController(limiter, "free")
	ctx := context.Background()

	anon := Request{OrgID: "org-1", Path: "/api/v1/posters/create", Method: "POST"}
	for i := 0; i < 3; i++ {
		outcome := ctrl.Admit(ctx, anon)
		require.Equal(t, StateAdmitted, outcome.State)
	}

	// all anonymous traffic for the org shares one key
	outcome := ctrl.Admit(ctx, anon)
	require.Equal(t, StateRejectedRate, outcome.State)

	// a named user still has their own bucket
	outcome = ctrl.Admit(ctx, posterRequest())
	require.Equal(t, StateAdmitted, outcome.State)
}

func TestControllerFailsOpenOnLimiterError(t *testing.T) {
	ctrl := newTestController(&brokenLimiter{}, "free")

	outcome := ctrl.Admit(context.Background(), posterRequest())
	require.Equal(t, StateAdmitted, outcome.State)
}

func TestControllerGeneralCategorySkipsQuota(t *testing.T) {
	ctrl := newTestController(ratelimit.NewMemoryLimiter(), "free")
	ctx := context.Background()

	req := Request{OrgID: "org-1", UserID: "user-1", Path: "/api/v2/other", Method: "GET"}
	outcome := ctrl.Admit(ctx, req)
	require.Equal(t, StateAdmitted, outcome.State)
	require.Equal(t, config.GeneralCategory, outcome.Category)
	require.Empty(t, outcome.Service)

	// no service, so a dispatch records no usage but still moves state
	ctrl.RecordDispatch(ctx, req, outcome)
	require.Equal(t, StateUsageRecorded, outcome.State)
}
