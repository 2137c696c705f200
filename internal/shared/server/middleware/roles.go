package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/server/respond"
)

// RequireRoles rejects callers whose primary role is not in the given set.
// It must run after Auth.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := IdentityFromContext(c)
		if ident.ID == 0 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		if !ident.HasAnyRole(roles...) {
			respond.Error(c, http.StatusForbidden, "forbidden", "insufficient role for this operation", nil)
			return
		}
		c.Next()
	}
}
