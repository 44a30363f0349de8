package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docspace-session-api/internal/models"
	"github.com/noah-isme/docspace-session-api/pkg/response"
)

type sessionLister interface {
	ListSessions(ctx context.Context, userID string) ([]models.SessionInfo, error)
}

type revoker interface {
	Revoke(ctx context.Context, tokens ...string) error
	RevokeAll(ctx context.Context, userID string) error
}

type sessionCookies interface {
	ReadRefresh(c *gin.Context) string
	Clear(c *gin.Context)
}

// AuthHandler serves session endpoints that need an authenticated principal.
// Login and reissue are handled by the session filters.
type AuthHandler struct {
	sessions    sessionLister
	revocations revoker
	cookies     sessionCookies
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(sessions sessionLister, revocations revoker, cookies sessionCookies) *AuthHandler {
	return &AuthHandler{sessions: sessions, revocations: revocations, cookies: cookies}
}

// Logout godoc
// @Summary End the current session
// @Description Revokes the access and refresh tokens carried by the request cookies and clears them
// @Tags Authentication
// @Success 204
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}

	if err := h.revocations.Revoke(c.Request.Context(), principal.AccessToken, h.cookies.ReadRefresh(c)); err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.Clear(c)
	response.NoContent(c)
}

// LogoutAll godoc
// @Summary End every session of the current user
// @Tags Authentication
// @Success 204
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}

	if err := h.revocations.RevokeAll(c.Request.Context(), principal.User.ID); err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.Clear(c)
	response.NoContent(c)
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, principal.User, map[string]interface{}{
		"access_expires_at": principal.ExpiresAt,
	})
}

// Sessions godoc
// @Summary Active sessions of the current user
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/sessions [get]
func (h *AuthHandler) Sessions(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), principal.User.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if sessions == nil {
		sessions = []models.SessionInfo{}
	}
	response.JSON(c, http.StatusOK, sessions, map[string]interface{}{"count": len(sessions)})
}
