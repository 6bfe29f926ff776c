package httpx

import (
	"net/http"
	"strings"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive (RFC 6750 section 2.1). It reports
// false when the header is absent, uses another scheme, or carries no token.
func BearerToken(h http.Header) (string, bool) {
	authz := strings.TrimSpace(h.Get("Authorization"))
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// WriteBearerChallenge sets an RFC 6750 WWW-Authenticate challenge. An empty
// errCode produces the bare challenge used when no credential was sent.
func WriteBearerChallenge(w http.ResponseWriter, realm, errCode, desc string) {
	v := `Bearer realm="` + realm + `"`
	if errCode != "" {
		v += `, error="` + errCode + `"`
		if desc != "" {
			v += `, error_description="` + desc + `"`
		}
	}
	w.Header().Set("WWW-Authenticate", v)
}
