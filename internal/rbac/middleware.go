package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"debt-collector/internal/auth"
)

// RequireInstanceScope enforces tenant isolation: the :instance_id path
// parameter must match the token's instance. Admins may act on any instance.
func RequireInstanceScope(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.IdentityFrom(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator identity required"})
			return
		}
		if IsAdmin(id.Role) {
			c.Next()
			return
		}
		if id.InstanceID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "instance_id required"})
			return
		}
		if c.Param(param) != id.InstanceID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// admin bypasses all checks.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		id, err := auth.IdentityFrom(c.Request.Context())
		if err != nil || id.Role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if IsAdmin(id.Role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[id.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
