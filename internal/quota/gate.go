package quota

import (
	"context"
	"log"
	"time"
)

// PlanResolver reports the subscription tier of an organization. The
// billing data lives outside this package; the gate only reads it.
type PlanResolver interface {
	PlanTier(ctx context.Context, orgID string) (string, error)
}

// Status is the result of a quota check.
type Status struct {
	WithinLimits     bool   `json:"within_limits"`
	Plan             string `json:"plan"`
	Service          string `json:"service_type"`
	RemainingMonthly int    `json:"remaining_monthly"`
	RemainingDaily   int    `json:"remaining_daily"`
	MonthlyExceeded  bool   `json:"monthly_exceeded"`
	DailyExceeded    bool   `json:"daily_exceeded"`
}

// Gate enforces plan-tiered daily and monthly caps per organization per
// generation service. It sits behind the rate limiter on the admission
// path: the limiter absorbs bursts, the gate enforces the slower plan
// allowance.
type Gate struct {
	plans    PlanTable
	resolver PlanResolver
	store    UsageStore
	now      func() time.Time
}

func NewGate(plans PlanTable, resolver PlanResolver, store UsageStore) *Gate {
	return &Gate{
		plans:    plans,
		resolver: resolver,
		store:    store,
		now:      time.Now,
	}
}

// Check reports whether the organization is within its plan's caps for
// the service. Any error resolving plan or usage data is logged and
// converted to an admit: the gate failing must never be a bigger outage
// than the generation pipeline it protects.
func (g *Gate) Check(ctx context.Context, orgID, service string) Status {
	now := g.now()

	tier, err := g.resolver.PlanTier(ctx, orgID)
	if err != nil {
		log.Printf("quota: plan lookup failed for org %s, failing open: %v", orgID, err)
		return Status{WithinLimits: true, Plan: DefaultTier, Service: service, RemainingMonthly: -1, RemainingDaily: -1}
	}
	if tier == "" {
		tier = DefaultTier
	}

	caps := g.plans.Caps(tier, service)

	usage, err := g.store.Usage(ctx, orgID, service, now)
	if err != nil {
		log.Printf("quota: usage lookup failed for org %s, failing open: %v", orgID, err)
		return Status{WithinLimits: true, Plan: tier, Service: service, RemainingMonthly: -1, RemainingDaily: -1}
	}

	status := Status{
		Plan:             tier,
		Service:          service,
		MonthlyExceeded:  caps.Monthly > 0 && usage.Monthly >= caps.Monthly,
		DailyExceeded:    caps.Daily > 0 && usage.Daily >= caps.Daily,
		RemainingMonthly: remaining(caps.Monthly, usage.Monthly),
		RemainingDaily:   remaining(caps.Daily, usage.Daily),
	}
	status.WithinLimits = !status.MonthlyExceeded && !status.DailyExceeded

	return status
}

// Increment bumps both usage counters. Callers invoke it only after the
// downstream generation call actually dispatched, so rejected requests
// are never charged. Errors are logged, never surfaced.
func (g *Gate) Increment(ctx context.Context, orgID, service string) {
	if err := g.store.Increment(ctx, orgID, service, g.now()); err != nil {
		log.Printf("quota: usage increment failed for org %s service %s: %v", orgID, service, err)
	}
}

// remaining is -1 for an unlimited cap, never negative otherwise.
func remaining(cap, used int) int {
	if cap == 0 {
		return -1
	}
	if used >= cap {
		return 0
	}
	return cap - used
}
