package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/response"
)

// RequireRole allows only callers whose token role is one of roles. Call after JWT.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextUserRole); !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if _, ok := allowed[Role(c)]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Role returns the authenticated caller's role.
func Role(c *gin.Context) models.Role {
	return models.Role(c.GetString(ContextUserRole))
}
