package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-community/challenges/internal/auth"
	"github.com/aura-community/challenges/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextGuildID is the key for the token's guild in gin context.
	ContextGuildID = "guild_id"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextGuildID, claims.GuildID)
		c.Next()
	}
}

// RequireGuild rejects requests whose :guild path parameter differs from the token's guild.
// Call after JWT.
func RequireGuild() gin.HandlerFunc {
	return func(c *gin.Context) {
		guild := c.Param("guild")
		if guild == "" || guild != c.GetString(ContextGuildID) {
			response.Forbidden(c, "not authorized for this guild")
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user's id.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
