package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docspace-session-api/internal/middleware"
	"github.com/noah-isme/docspace-session-api/internal/models"
	appErrors "github.com/noah-isme/docspace-session-api/pkg/errors"
	"github.com/noah-isme/docspace-session-api/pkg/response"
)

// principalFromContext returns the session principal, writing a 401 when the
// route was reached without one.
func principalFromContext(c *gin.Context) (*models.Principal, bool) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Abort(c, appErrors.Clone(appErrors.ErrTokenInvalid, ""))
		return nil, false
	}
	return principal, true
}
