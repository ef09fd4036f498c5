// Package session reads the access token a request presents and clears it
// on logout. Tokens are issued by the identity provider, never here.
package session

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rollcall/internal/config"
)

const DefaultCookieName = "_sid"

// Manager looks for the token in the Authorization header first and then in
// the session cookie browsers carry.
type Manager struct {
	cookieName string
	secure     bool
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{
		cookieName: DefaultCookieName,
		secure:     cfg.Auth.CookieSecure,
	}
}

func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
		return token, true
	}
	cookie, err := c.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	cookie = strings.TrimSpace(cookie)
	return cookie, cookie != ""
}

// Clear expires the session cookie. It is safe to call without one.
func (m *Manager) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
