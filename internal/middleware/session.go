package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docspace-session-api/internal/models"
	"github.com/noah-isme/docspace-session-api/pkg/logger"
	"github.com/noah-isme/docspace-session-api/pkg/response"
)

// ContextUserKey is the gin context key storing the authenticated *models.Principal.
const ContextUserKey = "currentUser"

type accessValidator interface {
	ValidateAccess(ctx context.Context, token string) (*models.Principal, error)
}

type accessReader interface {
	ReadAccess(c *gin.Context) string
}

// RequireSession protects routes by requiring a valid access token cookie.
func RequireSession(sessions accessValidator, transport accessReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := sessions.ValidateAccess(c.Request.Context(), transport.ReadAccess(c))
		if err != nil {
			response.Abort(c, err)
			return
		}

		attachPrincipal(c, principal)
		c.Next()
	}
}

// OptionalSession attaches the principal when a valid access cookie is present but does not block.
func OptionalSession(sessions accessValidator, transport accessReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := transport.ReadAccess(c)
		if token == "" {
			c.Next()
			return
		}

		principal, err := sessions.ValidateAccess(c.Request.Context(), token)
		if err != nil {
			c.Next()
			return
		}

		attachPrincipal(c, principal)
		c.Next()
	}
}

// CurrentPrincipal returns the principal attached by RequireSession or OptionalSession.
func CurrentPrincipal(c *gin.Context) (*models.Principal, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	principal, ok := value.(*models.Principal)
	return principal, ok && principal != nil
}

func attachPrincipal(c *gin.Context, principal *models.Principal) {
	c.Set(ContextUserKey, principal)
	c.Set(logger.PrincipalKey, principal.User.ID)
}
