package auth

import (
	"net/http"
	"time"
)

// LogoutMarker is the value written to the session cookie on logout.
const LogoutMarker = "logout"

// CookieConfig configures the session cookie.
type CookieConfig struct {
	// Name is the cookie name ("Login").
	Name string

	// Path scopes the cookie. Defaults to "/".
	Path string

	// Secure sets the Secure attribute.
	Secure bool
}

// CookieHelper reads and writes the session cookie.
type CookieHelper struct {
	config CookieConfig
}

// NewCookieHelper creates a new cookie helper with the given configuration.
func NewCookieHelper(config CookieConfig) *CookieHelper {
	if config.Path == "" {
		config.Path = "/"
	}
	return &CookieHelper{config: config}
}

// SetSession writes the session token cookie.
func (h *CookieHelper) SetSession(w http.ResponseWriter, session *Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	h.setCookie(w, session.Token, maxAge, session.ExpiresAt)
}

// SetLogout replaces the session cookie with an already expired logout marker.
func (h *CookieHelper) SetLogout(w http.ResponseWriter) {
	h.setCookie(w, LogoutMarker, -1, time.Unix(0, 0))
}

// Token returns the session token from the request, or "" when the request
// has no cookie or carries the logout marker.
func (h *CookieHelper) Token(r *http.Request) string {
	cookie, err := r.Cookie(h.config.Name)
	if err != nil || cookie.Value == LogoutMarker {
		return ""
	}
	return cookie.Value
}

func (h *CookieHelper) setCookie(w http.ResponseWriter, value string, maxAge int, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.Name,
		Value:    value,
		Path:     h.config.Path,
		MaxAge:   maxAge,
		Expires:  expires.UTC(),
		Secure:   h.config.Secure,
		HttpOnly: true, // always true for auth cookies
		SameSite: http.SameSiteStrictMode,
	})
}
