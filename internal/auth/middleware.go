package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"debt-collector/pkg/logger"
)

const bearerPrefix = "Bearer "

// RequireAccessToken verifies an operator token, stores the caller's Identity
// in the request context and tags the request logger with it.
// RBAC checks belong to internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			logger.FromGin(c).Debug("access token rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		id := claims.Identity()
		c.Request = c.Request.WithContext(withIdentity(c.Request.Context(), id))
		logger.Annotate(c, "operator_id", id.OperatorID, "role", id.Role)
		c.Next()
	}
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return WithIdentity(ctx, id.OperatorID, id.InstanceID, id.Role)
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(bearerPrefix):]), true
}
