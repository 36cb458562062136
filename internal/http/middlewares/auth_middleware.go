package middlewares

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onemove/marketplace/internal/auth"
	"github.com/onemove/marketplace/internal/config"
	"github.com/onemove/marketplace/internal/domain/user"
)

const accessCookieName = "accessToken"

// Keep these interfaces small so tests can fake them easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.AccessClaims, error)
}

type UserFinder interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type AuthMiddleware struct {
	jwt   TokenVerifier
	users UserFinder
}

func NewAuthMiddleware(jwt TokenVerifier, users UserFinder) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, users: users}
}

// RequireAuth verifies the access token (cookie or bearer header), loads
// the account, and attaches the sanitized user to the context. Every
// failure mode collapses into the same 401 so callers cannot probe
// whether a token was expired, forged, or belonged to a deleted account.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractAccessToken(c)

		if raw == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)

		if err != nil {
			abortUnauthorized(c)
			return
		}

		cctx, cancel := config.WithTimeout(2 * time.Second)
		defer cancel()

		u, err := m.users.GetByID(cctx, claims.UserID)

		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(CtxUser, u.Sanitized())

		c.Next()
	}
}

func extractAccessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(accessCookieName); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")

	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	}

	return ""
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"statusCode": http.StatusUnauthorized,
		"message":    "Unauthorized request",
		"errors":     []string{},
		"success":    false,
	})
}

// UserFromContext returns the authenticated user attached by RequireAuth.
func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}

	u, ok := v.(user.User)
	return u, ok
}
