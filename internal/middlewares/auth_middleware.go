package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"backend/internal/config"
	"backend/internal/responses"
	"backend/internal/utils"
)

const ClaimsKey = "claims"

// Authenticate verifies the externally issued bearer token and stores its
// claims in the context. With auth disabled every request acts as a local
// admin.
func Authenticate(cfg config.AuthConfig) gin.HandlerFunc {
	secret := []byte(cfg.TokenSecret)

	return func(c *gin.Context) {
		if cfg.Disabled {
			c.Set(ClaimsKey, &utils.Claims{Role: utils.RoleAdmin})
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			responses.Abort(c, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header")
			return
		}

		// Expected format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			responses.Abort(c, http.StatusUnauthorized, "Unauthorized", "Invalid Authorization format")
			return
		}

		claims, err := utils.VerifyJWT(parts[1], secret)
		if err != nil {
			responses.Abort(c, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set("userId", claims.Subject)

		c.Next()
	}
}
