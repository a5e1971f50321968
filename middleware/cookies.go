package middleware

import (
	"net/http"
	"time"
)

// Cookies names and scopes the session and remember-me cookies.
type Cookies struct {
	SessionName  string
	RememberName string
	Path         string
	Secure       bool
	// Now is used for remember-me cookie expiry. Defaults to time.Now.
	Now func() time.Time
}

// DefaultCookies returns the cookie names used by the web package.
func DefaultCookies() Cookies {
	return Cookies{
		SessionName:  "SID",
		RememberName: "REMEMBERME",
		Path:         "/",
		Secure:       true,
	}
}

func (c Cookies) normalized() Cookies {
	d := DefaultCookies()
	if c.SessionName == "" {
		c.SessionName = d.SessionName
	}
	if c.RememberName == "" {
		c.RememberName = d.RememberName
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// SetSession writes the session cookie. It is a browser-session cookie;
// server-side expiry is enforced by the session store.
func (c Cookies) SetSession(w http.ResponseWriter, sessionID string) {
	c = c.normalized()
	http.SetCookie(w, &http.Cookie{
		Name:     c.SessionName,
		Value:    sessionID,
		Path:     c.Path,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetRemember writes the remember-me cookie with the token's expiry.
func (c Cookies) SetRemember(w http.ResponseWriter, token string, expiresAt time.Time) {
	c = c.normalized()
	http.SetCookie(w, &http.Cookie{
		Name:     c.RememberName,
		Value:    token,
		Path:     c.Path,
		Expires:  expiresAt,
		MaxAge:   int(expiresAt.Sub(c.Now()).Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearRemember expires the remember-me cookie.
func (c Cookies) ClearRemember(w http.ResponseWriter) {
	c = c.normalized()
	http.SetCookie(w, &http.Cookie{
		Name:     c.RememberName,
		Value:    "",
		Path:     c.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
