package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cdrp/console-gateway/internal/models"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
	"github.com/cdrp/console-gateway/pkg/response"
)

// ContextSessionKey is the gin context key holding the caller's *models.Session.
const ContextSessionKey = "session"

// Authenticator validates a bearer token.
type Authenticator interface {
	Authenticate(token string) (*models.Session, error)
}

// Session requires a bearer token and stores the resulting session on the context.
func Session(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		session, err := auth.Authenticate(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextSessionKey, session)
		c.Next()
	}
}

// SessionFrom returns the session placed by Session, if any.
func SessionFrom(c *gin.Context) (*models.Session, bool) {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil, false
	}
	session, ok := value.(*models.Session)
	return session, ok && session != nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
