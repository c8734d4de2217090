package admission

import (
	"github.com/craftlab/ai-gateway/internal/quota"
	"github.com/craftlab/ai-gateway/internal/ratelimit"
)

// State tracks a request through the admission pipeline. Terminal
// states are UsageRecorded and the Rejected ones; Bypassed marks
// requests outside AI-service scope.
type State string

const (
	StateBypassed        State = "bypassed"
	StateAdmitted        State = "admitted"
	StateUsageRecorded   State = "usage_recorded"
	StateRejectedContext State = "rejected_context"
	StateRejectedRate    State = "rejected_rate"
	StateRejectedQuota   State = "rejected_quota"
)

// Request is what the routing layer hands to the controller. OrgID is
// required for in-scope paths; an empty UserID maps to the anonymous
// sentinel.
type Request struct {
	OrgID  string
	UserID string
	Path   string
	Method string
}

// Outcome is the controller's verdict. Exactly one of Rate and Quota is
// populated when the request was rejected for capacity.
type Outcome struct {
	State    State
	Category string
	Service  string
	Rate     *ratelimit.Decision
	Quota    *quota.Status
}

// Rejected reports whether the outcome is a terminal rejection.
func (o *Outcome) Rejected() bool {
	switch o.State {
	case StateRejectedContext, StateRejectedRate, StateRejectedQuota:
		return true
	}
	return false
}
