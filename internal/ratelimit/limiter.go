package ratelimit

import (
	"context"
	"sort"
	"time"
)

// AnonymousUser is the sentinel user id for unauthenticated callers.
// They still get a per-organization scoped limit instead of sharing a
// global bucket or bypassing limits entirely.
const AnonymousUser = "anonymous"

// Key identifies one rate-limit bucket.
type Key struct {
	OrgID    string
	UserID   string
	Category string
}

func (k Key) String() string {
	return k.OrgID + ":" + k.UserID + ":" + k.Category
}

// Rule is one limit applied to an endpoint category. Multiple rules
// apply concurrently (e.g. a burst limit plus a sustained limit) and
// all of them must pass.
type Rule struct {
	Name        string
	MaxRequests int
	Window      time.Duration
}

// Decision is the outcome of a check. When Admitted is false the
// violating rule's diagnostics are filled in.
type Decision struct {
	Admitted   bool
	Rule       string
	Limit      int
	Current    int
	Window     time.Duration
	RetryAfter time.Duration
}

// Limiter evaluates every rule for a key in one shot and records the
// request only if all of them pass. Implementations must keep
// check-then-commit atomic per key: a rejection never mutates any
// counter, and an admission records on every counter.
type Limiter interface {
	CheckAndRecord(ctx context.Context, key Key, rules []Rule, now time.Time) (*Decision, error)

	// Sweep evicts keys whose rule windows have all elapsed with no
	// activity. Returns the number of keys removed.
	Sweep(ctx context.Context, now time.Time) int
}

// sortRules returns a copy ordered by ascending window so burst limits
// are evaluated and reported before sustained ones.
func sortRules(rules []Rule) []Rule {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Window < sorted[j].Window
	})

	return sorted
}
