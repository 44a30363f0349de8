package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docspace-session-api/pkg/response"
)

type accountLifecycle interface {
	Deactivate(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
}

// AccountHandler exposes principal lifecycle changes that end every session.
type AccountHandler struct {
	accounts accountLifecycle
	cookies  sessionCookies
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(accounts accountLifecycle, cookies sessionCookies) *AccountHandler {
	return &AccountHandler{accounts: accounts, cookies: cookies}
}

// Deactivate godoc
// @Summary Deactivate the current account
// @Description Marks the account inactive and revokes all of its tokens
// @Tags Account
// @Success 204
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /account/deactivate [post]
func (h *AccountHandler) Deactivate(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}

	if err := h.accounts.Deactivate(c.Request.Context(), principal.User.ID); err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.Clear(c)
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete the current account
// @Description Deletes the account together with every access and refresh token it owns
// @Tags Account
// @Success 204
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /account [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}

	if err := h.accounts.Delete(c.Request.Context(), principal.User.ID); err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.Clear(c)
	response.NoContent(c)
}
