package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/onemove/marketplace/internal/domain/user"
)

// RequireActiveRole gates a route on the caller's current operating mode,
// not just a granted role: a seller browsing as a buyer cannot list
// products until they switch back.
func RequireActiveRole(required user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := UserFromContext(c)

		if !ok {
			abortUnauthorized(c)
			return
		}

		if u.ActiveRole != required {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"statusCode": http.StatusForbidden,
				"message":    "Active role " + string(required) + " required",
				"errors":     []string{},
				"success":    false,
			})
			return
		}
		c.Next()
	}
}
