package handler

import (
	"net/http"

	"github.com/craftlab/ai-gateway/internal/proxy"
	"github.com/gin-gonic/gin"
)

// Handles system-related endpoints
type SystemHandler struct {
	pools map[string]*proxy.Pool
}

func NewSystemHandler(pools map[string]*proxy.Pool) *SystemHandler {
	return &SystemHandler{
		pools: pools,
	}
}

// Returns the status of all circuit breakers
func (h *SystemHandler) CircuitBreakerStatus(c *gin.Context) {
	statuses := make(map[string]interface{})

	for path, pool := range h.pools {
		metrics := pool.CircuitBreakerMetrics()

		statuses[path] = gin.H{
			"state":             metrics.State.String(),
			"failure_count":     metrics.FailureCount,
			"success_count":     metrics.SuccessCount,
			"last_failure_time": metrics.LastFailureTime,
			"last_state_change": metrics.LastStateChange,
		}
	}

	c.JSON(http.StatusOK, statuses)
}

// Manually resets a circuit breaker
func (h *SystemHandler) ResetCircuitBreaker(c *gin.Context) {
	// Wildcard param already includes leading slash (e.g., "/api/v1/posters")
	service := c.Param("service")

	pool, exists := h.pools[service]
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Service not found",
		})
		return
	}

	pool.ResetCircuitBreaker()

	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset successfully",
		"service": service,
	})
}

// Returns provider health status for all pools
func (h *SystemHandler) ProviderHealth(c *gin.Context) {
	statuses := make(map[string]interface{})

	for path, pool := range h.pools {
		statuses[path] = gin.H{
			"overall": pool.OverallHealth().String(),
			"targets": pool.GetHealthStatus(),
		}
	}

	c.JSON(http.StatusOK, statuses)
}
