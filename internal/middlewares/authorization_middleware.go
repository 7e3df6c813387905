package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backend/internal/responses"
	"backend/internal/utils"
)

// RequireAdmin checks that the authenticated session carries the admin role.
// This middleware should be used after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ClaimsKey)
		if !exists {
			responses.Abort(c, http.StatusUnauthorized, "Unauthorized", "Unauthorized")
			return
		}

		claims, ok := value.(*utils.Claims)
		if !ok || claims.Role != utils.RoleAdmin {
			responses.Abort(c, http.StatusForbidden, "Forbidden", "Admin access required")
			return
		}

		c.Next()
	}
}
