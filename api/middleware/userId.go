package middleware

import (
	"github.com/gin-gonic/gin"
)

var userIdHeaders = []string{"X-USER-ID", "X-User-Id", "user_id"}

// UserIdMiddleware resolves the acting pet owner from a header, falling back
// to the user_id query parameter.
func UserIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := ""
		for _, header := range userIdHeaders {
			if value := c.GetHeader(header); value != "" {
				userId = value
				break
			}
		}
		if userId == "" {
			userId = c.Query("user_id")
		}

		// Store in gin context for later use
		c.Set("UserId", userId)
		c.Next()
	}
}
