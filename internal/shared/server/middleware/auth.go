package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/auth"
	"docvault-backend/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userRolesKey = "userRoles"
)

// SkipRule exempts a route from bearer-token auth. An empty Method matches
// any method. Path matches exactly unless Prefix is set, so exempting one
// method on a path never opens sibling routes that share the prefix.
type SkipRule struct {
	Method string
	Path   string
	Prefix bool
}

func (r SkipRule) matches(method, path string) bool {
	if r.Method != "" && r.Method != method {
		return false
	}
	if r.Prefix {
		return strings.HasPrefix(path, r.Path)
	}
	return path == r.Path
}

// Auth validates the bearer JWT and stores the caller identity in context.
// Routes matched by a SkipRule are reachable without a token (signup, login,
// the ingestion webhook, signed file links). CORS preflights are handled by
// the CORS middleware before auth runs.
func Auth(skip ...SkipRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, rule := range skip {
			if rule.matches(c.Request.Method, path) {
				c.Next()
				return
			}
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := auth.VerifyJWT(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.Sub)
		c.Set(userRolesKey, claims.Roles)
		c.Next()
	}
}

// IdentityFromContext fetches the caller identity set by the auth middleware.
func IdentityFromContext(c *gin.Context) auth.Identity {
	if c == nil {
		return auth.Identity{}
	}
	var ident auth.Identity
	if val, ok := c.Get(userIDKey); ok {
		if id, ok := val.(int64); ok {
			ident.ID = id
		}
	}
	if val, ok := c.Get(userRolesKey); ok {
		if roles, ok := val.([]string); ok {
			ident.Roles = roles
		}
	}
	return ident
}
