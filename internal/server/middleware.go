package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"lot-auction/internal/auth"
	"lot-auction/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if id, ok := auth.FromContext(c.Request.Context()); ok {
		fields["user_id"] = id.UserID
		fields["role"] = id.Role
	}
	utils.Info("HTTP Request", fields)
}

// IdentityMiddleware resolves the caller and stores it on the request context.
// Requests without a valid identity are rejected with 401.
func IdentityMiddleware(resolver auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := resolver.Resolve(c.Request)
		if err != nil {
			status, message := http.StatusInternalServerError, "internal server error"
			if errors.Is(err, auth.ErrUnauthenticated) {
				status, message = http.StatusUnauthorized, "authentication required"
			}
			utils.JSONError(c, status, err, message)
			utils.Warn("IdentityMiddleware: request rejected", map[string]any{
				"path":   c.Request.URL.Path,
				"status": status,
				"error":  err.Error(),
			})
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireRole lets the request through only if the caller holds one of roles
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.FromContext(c.Request.Context())
		if !ok {
			utils.JSONError(c, http.StatusUnauthorized, auth.ErrUnauthenticated, "authentication required")
			c.Abort()
			return
		}
		if !id.Is(roles...) {
			err := fmt.Errorf("%w: role %s on %s", auth.ErrForbidden, id.Role, c.FullPath())
			utils.JSONError(c, http.StatusForbidden, err, "not allowed for this role")
			utils.Warn("RequireRole: request rejected", map[string]any{
				"user_id": id.UserID,
				"role":    id.Role,
				"path":    c.Request.URL.Path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
