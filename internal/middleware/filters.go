package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/docspace-session-api/internal/models"
	appErrors "github.com/noah-isme/docspace-session-api/pkg/errors"
	"github.com/noah-isme/docspace-session-api/pkg/middleware/requestid"
	"github.com/noah-isme/docspace-session-api/pkg/response"
)

type loginService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.User, *models.IssuedPair, error)
	RejectLogin(cause error) error
}

type reissueService interface {
	Reissue(ctx context.Context, refreshToken string, meta models.ClientMeta) (*models.ReissueResult, error)
}

// sessionTransport is the cookie side of the filters.
type sessionTransport interface {
	SetSession(c *gin.Context, access string, accessExp time.Time, refresh string, refreshExp time.Time)
	SetAccess(c *gin.Context, value string, exp time.Time)
	SetRefresh(c *gin.Context, value string, exp time.Time)
	Clear(c *gin.Context)
	ReadRefresh(c *gin.Context) string
}

// AuthenticationFilter handles POST requests to loginPath: it verifies the
// submitted credentials, issues a token pair and sets both cookies. Other
// requests pass through untouched.
func AuthenticationFilter(loginPath string, sessions loginService, transport sessionTransport, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if !engaged(c, loginPath) {
			c.Next()
			return
		}

		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			rejected := sessions.RejectLogin(err)
			logFailure(log, c, "login rejected", rejected)
			response.Abort(c, rejected)
			return
		}
		req.IP = c.ClientIP()
		req.UserAgent = c.Request.UserAgent()

		user, pair, err := sessions.Login(c.Request.Context(), req)
		if err != nil {
			logFailure(log, c, "login rejected", err)
			response.Abort(c, err)
			return
		}

		transport.SetSession(c, pair.AccessToken, pair.AccessExpiresAt, pair.RefreshToken, pair.RefreshExpiresAt)
		response.JSON(c, http.StatusOK, models.LoginResponse{
			TokenType:        models.TokenTypeCookie,
			AccessExpiresAt:  pair.AccessExpiresAt,
			RefreshExpiresAt: pair.RefreshExpiresAt,
			User:             user.Info(),
		})
		c.Abort()
	}
}

// ReissueFilter handles POST requests to refreshPath: it exchanges the refresh
// cookie for a new access token, rotating the refresh token near its expiry.
// An invalid session clears both cookies; a store failure leaves them alone.
func ReissueFilter(refreshPath string, sessions reissueService, transport sessionTransport, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if !engaged(c, refreshPath) {
			c.Next()
			return
		}

		meta := models.ClientMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		result, err := sessions.Reissue(c.Request.Context(), transport.ReadRefresh(c), meta)
		if err != nil {
			logFailure(log, c, "reissue rejected", err)
			if appErrors.FromError(err).Status < http.StatusInternalServerError {
				transport.Clear(c)
			}
			response.Abort(c, err)
			return
		}

		transport.SetAccess(c, result.AccessToken, result.AccessExpiresAt)
		if result.RefreshRotated {
			transport.SetRefresh(c, result.RefreshToken, result.RefreshExpiresAt)
		}
		response.JSON(c, http.StatusOK, models.ReissueResponse{
			TokenType:        models.TokenTypeCookie,
			AccessExpiresAt:  result.AccessExpiresAt,
			RefreshExpiresAt: result.RefreshExpiresAt,
			RefreshRotated:   result.RefreshRotated,
		})
		c.Abort()
	}
}

func engaged(c *gin.Context, path string) bool {
	return c.Request.Method == http.MethodPost && c.Request.URL.Path == path
}

func logFailure(log *zap.Logger, c *gin.Context, msg string, err error) {
	appErr := appErrors.FromError(err)
	fields := []zap.Field{
		zap.String("code", appErr.Code),
		zap.String("client_ip", c.ClientIP()),
		zap.String("request_id", requestid.Value(c)),
	}
	if appErr.Status >= http.StatusInternalServerError {
		log.Error(msg, append(fields, zap.Error(err))...)
		return
	}
	log.Info(msg, fields...)
}
