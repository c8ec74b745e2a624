package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/cdrp/console-gateway/internal/models"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
	"github.com/cdrp/console-gateway/pkg/response"
)

// RequireRoles rejects sessions whose role is not one of roles. It must run
// after Session.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := SessionFrom(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !session.HasRole(roles...) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
