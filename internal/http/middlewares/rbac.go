package middlewares

import (
	"net/http"

	"github.com/geocoder89/notehub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth. It checks the live role.
func RequireRole(required user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)

		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", unauthorizedMessage)
			return
		}
		if p.Role != required {
			abortJSON(c, http.StatusForbidden, "forbidden", "Forbidden: only "+string(required)+" users may do this")
			return
		}
		c.Next()
	}
}
