package httpx

import (
	"net/http"
	"strings"
	"time"
)

// SessionCookie describes an HttpOnly cookie used to carry a long lived
// credential. The Secure flag follows the request: it is set when the request
// arrived over TLS, directly or through a proxy that reports
// X-Forwarded-Proto: https, or always when ForceSecure is on.
type SessionCookie struct {
	Name        string
	Path        string
	MaxAge      time.Duration
	ForceSecure bool
}

// IsSecureRequest reports whether r reached us over HTTPS.
func IsSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}

// Set writes the cookie with the given value.
func (c SessionCookie) Set(w http.ResponseWriter, r *http.Request, value string) {
	http.SetCookie(w, c.build(r, value, int(c.MaxAge/time.Second)))
}

// Clear expires the cookie on the client. It carries the same attributes as
// Set, otherwise browsers treat it as a different cookie.
func (c SessionCookie) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, c.build(r, "", -1))
}

// Read returns the cookie value, or "" when the cookie is absent.
func (c SessionCookie) Read(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func (c SessionCookie) build(r *http.Request, value string, maxAge int) *http.Cookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.ForceSecure || IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}
