package middleware

import (
	"net/http"
	"strings"

	"github.com/craftlab/ai-gateway/internal/service"
	"github.com/gin-gonic/gin"
)

// APIKeyValidator resolves the tenant. A valid key puts the owning
// organization's id into the request context, which the admission layer
// requires for in-scope paths. Requests without a key pass through and
// are rejected later if they hit a gated path.
func APIKeyValidator(apiKeyService *service.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKeyHeader := c.GetHeader("X-API-Key")

		if apiKeyHeader == "" {
			c.Next()
			return
		}

		apiKeyHeader = strings.TrimSpace(apiKeyHeader)

		ctx := c.Request.Context()
		apiKey, err := apiKeyService.Validate(ctx, apiKeyHeader)

		if err != nil || apiKey == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Set("api_key", apiKey)
		c.Set("api_key_id", apiKey.ID)
		c.Set("org_id", apiKey.OrganizationID.String())

		go apiKeyService.UpdateLastUsed(ctx, apiKey.ID)

		c.Next()
	}
}
