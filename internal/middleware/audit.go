package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/docspace-session-api/internal/models"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Audit creates a middleware that records audit logs after successful requests.
// The principal is captured before the handler runs so that account deletion
// is still attributed.
func Audit(repo auditWriter, action, resource string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		var userID *string
		if principal, ok := CurrentPrincipal(c); ok {
			id := principal.User.ID
			userID = &id
		}

		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		if err := repo.CreateAuditLog(context.WithoutCancel(c.Request.Context()), &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: userID,
			NewValues:  body,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		}); err != nil {
			log.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
		}
	}
}
