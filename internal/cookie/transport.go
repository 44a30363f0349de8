package cookie

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docspace-session-api/pkg/config"
)

// Transport carries session tokens between the server and the client as
// HttpOnly cookies.
type Transport struct {
	cfg config.CookieConfig
	now func() time.Time
}

// NewTransport constructs a Transport.
func NewTransport(cfg config.CookieConfig) *Transport {
	return &Transport{cfg: cfg, now: time.Now}
}

// SetSession writes both session cookies.
func (t *Transport) SetSession(c *gin.Context, access string, accessExp time.Time, refresh string, refreshExp time.Time) {
	t.SetAccess(c, access, accessExp)
	t.SetRefresh(c, refresh, refreshExp)
}

// SetAccess writes the access token cookie.
func (t *Transport) SetAccess(c *gin.Context, value string, exp time.Time) {
	t.set(c, t.cfg.AccessName, value, exp)
}

// SetRefresh writes the refresh token cookie.
func (t *Transport) SetRefresh(c *gin.Context, value string, exp time.Time) {
	t.set(c, t.cfg.RefreshName, value, exp)
}

// Clear expires both session cookies on the client.
func (t *Transport) Clear(c *gin.Context) {
	t.expire(c, t.cfg.AccessName)
	t.expire(c, t.cfg.RefreshName)
}

// ReadAccess returns the access token cookie value, or "" when absent.
func (t *Transport) ReadAccess(c *gin.Context) string {
	return t.read(c, t.cfg.AccessName)
}

// ReadRefresh returns the refresh token cookie value, or "" when absent.
func (t *Transport) ReadRefresh(c *gin.Context) string {
	return t.read(c, t.cfg.RefreshName)
}

func (t *Transport) set(c *gin.Context, name, value string, exp time.Time) {
	maxAge := int(exp.Sub(t.now()) / time.Second)
	if maxAge <= 0 {
		t.expire(c, name)
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     t.cfg.Path,
		Domain:   t.cfg.Domain,
		Expires:  exp.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.cfg.Secure,
		SameSite: t.cfg.SameSite,
	})
}

func (t *Transport) expire(c *gin.Context, name string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     t.cfg.Path,
		Domain:   t.cfg.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.cfg.Secure,
		SameSite: t.cfg.SameSite,
	})
}

func (t *Transport) read(c *gin.Context, name string) string {
	value, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}
