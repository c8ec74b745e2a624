package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/cdrp/console-gateway/internal/middleware"
	"github.com/cdrp/console-gateway/internal/models"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
	"github.com/cdrp/console-gateway/pkg/response"
)

// sessionFromContext returns the caller's session, writing 401 when the route
// was mounted without the session middleware.
func sessionFromContext(c *gin.Context) (models.Session, bool) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Session{}, false
	}
	return *session, true
}
