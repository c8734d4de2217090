package admission

import (
	"context"
	"log"
	"time"

	"github.com/craftlab/ai-gateway/internal/config"
	"github.com/craftlab/ai-gateway/internal/metrics"
	"github.com/craftlab/ai-gateway/internal/quota"
	"github.com/craftlab/ai-gateway/internal/ratelimit"
)

// Controller is the single admission entry point on the request path.
// It resolves the endpoint category, runs the rate limiter, then the
// quota gate, and renders one verdict. It owns no HTTP concerns - the
// middleware layer translates outcomes into responses.
type Controller struct {
	policy  *config.Policy
	limiter ratelimit.Limiter
	gate    *quota.Gate
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(policy *config.Policy, limiter ratelimit.Limiter, gate *quota.Gate, m *metrics.Metrics) *Controller {
	return &Controller{
		policy:  policy,
		limiter: limiter,
		gate:    gate,
		metrics: m,
		now:     time.Now,
	}
}

// Admit decides whether a request may proceed to the generation
// providers. Only capacity, quota and missing-context outcomes reject;
// an internal limiter failure fails open so the gate is never a bigger
// outage than what it protects.
func (c *Controller) Admit(ctx context.Context, req Request) *Outcome {
	started := c.now()

	route, inScope := c.policy.Resolve(req.Path, req.Method)
	if !inScope {
		return &Outcome{State: StateBypassed}
	}

	if req.OrgID == "" {
		// Configuration error, not a capacity problem - the routing
		// layer should always resolve an organization for in-scope
		// paths.
		outcome := &Outcome{State: StateRejectedContext, Category: route.Category, Service: route.Service}
		c.metrics.RecordCheck(string(outcome.State), route.Category, c.now().Sub(started))
		return outcome
	}

	userID := req.UserID
	if userID == "" {
		userID = ratelimit.AnonymousUser
	}

	key := ratelimit.Key{OrgID: req.OrgID, UserID: userID, Category: route.Category}

	decision, err := c.limiter.CheckAndRecord(ctx, key, c.policy.Rules(route.Category), c.now())
	if err != nil {
		log.Printf("admission: rate limit check failed for %s, failing open: %v", key.String(), err)
		decision = &ratelimit.Decision{Admitted: true}
	}

	if !decision.Admitted {
		outcome := &Outcome{State: StateRejectedRate, Category: route.Category, Service: route.Service, Rate: decision}
		c.metrics.RecordRateLimitRejection(route.Category, decision.Rule)
		c.metrics.RecordCheck(string(outcome.State), route.Category, c.now().Sub(started))
		return outcome
	}

	// Categories without a generation service (e.g. general) are rate
	// limited but carry no plan quota.
	if route.Service != "" {
		status := c.gate.Check(ctx, req.OrgID, route.Service)
		if !status.WithinLimits {
			outcome := &Outcome{State: StateRejectedQuota, Category: route.Category, Service: route.Service, Quota: &status}
			c.metrics.RecordQuotaRejection(route.Service, exhaustedWindow(status))
			c.metrics.RecordCheck(string(outcome.State), route.Category, c.now().Sub(started))
			return outcome
		}
	}

	outcome := &Outcome{State: StateAdmitted, Category: route.Category, Service: route.Service}
	c.metrics.RecordCheck(string(outcome.State), route.Category, c.now().Sub(started))
	return outcome
}

// RecordDispatch charges an admitted request against its quota. Call it
// only after the downstream generation call actually dispatched, so
// requests rejected later in the chain are never billed.
func (c *Controller) RecordDispatch(ctx context.Context, req Request, outcome *Outcome) {
	if outcome.State != StateAdmitted {
		return
	}

	if outcome.Service != "" {
		c.gate.Increment(ctx, req.OrgID, outcome.Service)
		c.metrics.RecordUsage(outcome.Service)
	}

	outcome.State = StateUsageRecorded
}

func exhaustedWindow(status quota.Status) string {
	if status.DailyExceeded {
		return "daily"
	}
	return "monthly"
}
