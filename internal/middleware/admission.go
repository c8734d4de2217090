package middleware

import (
	"fmt"
	"net/http"

	"github.com/craftlab/ai-gateway/internal/admission"
	"github.com/gin-gonic/gin"
)

// OutcomeKey is where the admission outcome is stashed in the gin
// context for the logging middleware.
const OutcomeKey = "admission_outcome"

// Admission runs the admission controller for every request and
// translates its verdict into HTTP. Admitted requests continue down the
// chain; usage is charged only after the downstream dispatch came back
// without a server error.
func Admission(ctrl *admission.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := admission.Request{
			OrgID:  c.GetString("org_id"),
			UserID: c.GetString("user_id"),
			Path:   c.Request.URL.Path,
			Method: c.Request.Method,
		}

		outcome := ctrl.Admit(c.Request.Context(), req)
		c.Set(OutcomeKey, outcome)

		switch outcome.State {
		case admission.StateBypassed:
			c.Next()

		case admission.StateRejectedContext:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "organization context could not be resolved; supply an API key or token",
			})
			c.Abort()

		case admission.StateRejectedRate:
			decision := outcome.Rate
			retryAfter := int(decision.RetryAfter.Seconds())

			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":          "Rate limit exceeded",
				"rule":           decision.Rule,
				"limit":          decision.Limit,
				"current":        decision.Current,
				"window_seconds": int(decision.Window.Seconds()),
				"retry_after":    retryAfter,
			})
			c.Abort()

		case admission.StateRejectedQuota:
			status := outcome.Quota

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":             "Usage quota exceeded",
				"plan":              status.Plan,
				"service_type":      status.Service,
				"monthly_exceeded":  status.MonthlyExceeded,
				"daily_exceeded":    status.DailyExceeded,
				"remaining_monthly": status.RemainingMonthly,
				"remaining_daily":   status.RemainingDaily,
			})
			c.Abort()

		case admission.StateAdmitted:
			c.Next()

			// Charge quota only when the generation call actually went
			// out and the backend did not fail - rejections further down
			// the chain and provider errors are never billed.
			if !c.IsAborted() && c.Writer.Status() < http.StatusInternalServerError {
				ctrl.RecordDispatch(c.Request.Context(), req, outcome)
			}
		}
	}
}
