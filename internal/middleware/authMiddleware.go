package middleware

import (
	"net/http"
	"strings"

	"github.com/craftlab/ai-gateway/internal/service"
	"github.com/gin-gonic/gin"
)

// Validates JWT token and requires authentication
func RequireAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, authService)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or missing bearer token",
			})
			c.Abort()
			return
		}

		setIdentity(c, claims)

		c.Next()
	}
}

// OptionalAuth populates the user identity when a valid bearer token is
// present but never rejects. Generation requests identified only by API
// key fall back to the anonymous per-organization rate bucket.
func OptionalAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := bearerClaims(c, authService); ok {
			setIdentity(c, claims)
		}

		c.Next()
	}
}

func bearerClaims(c *gin.Context, authService *service.AuthService) (map[string]interface{}, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}

	claims, err := authService.ValidateToken(parts[1])
	if err != nil {
		return nil, false
	}

	return claims, true
}

func setIdentity(c *gin.Context, claims map[string]interface{}) {
	if userID, ok := claims["user_id"].(string); ok {
		c.Set("user_id", userID)
	}
	if email, ok := claims["email"].(string); ok {
		c.Set("email", email)
	}
	if role, ok := claims["role"].(string); ok {
		c.Set("role", role)
	}

	// The token's organization only fills a gap - an API key already
	// bound the request to its owning organization.
	if orgID, ok := claims["org_id"].(string); ok && c.GetString("org_id") == "" {
		c.Set("org_id", orgID)
	}
}
