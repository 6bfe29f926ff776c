package domain

import "time"

// Session is the result of a successful login, registration or refresh. The
// refresh token only ever leaves the server in an HttpOnly cookie.
type Session struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	User             PublicUser
}
