package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"techrepair-server/internal/auth"
)

const technicianIDContextKey = "technicianID"

func TechnicianIDFromContext(c *gin.Context) (string, bool) {
	value, ok := c.Get(technicianIDContextKey)
	if !ok {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}

// RequireAuth guards the administrative surface: valid bearer token or 401.
func RequireAuth(cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token", "code": "unauthorized"})
			c.Abort()
			return
		}

		claims, err := auth.VerifyToken(parts[1], cfg)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token", "code": "unauthorized"})
			c.Abort()
			return
		}

		c.Set(technicianIDContextKey, claims.TechnicianID)
		c.Next()
	}
}
