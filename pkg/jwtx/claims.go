package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes. Access tokens are short so a leaked one dies
// quickly, refresh tokens are tracked server side and rotate on every use.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Kind separates the two token classes. It is embedded in the token so a
// refresh token can never be replayed as an access token (and vice versa)
// even if someone configures both secrets the same in a test.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims are the claims carried by both token classes. Email is only set on
// access tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the subject at the time of signing (access tokens only)
	Email string `json:"email,omitempty"`

	// Kind is "access" or "refresh"
	Kind Kind `json:"typ"`
}

// NewAccessClaims builds claims for a short-lived access token.
func NewAccessClaims(subject, email string, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, ttl, issuer, now),
		Email:            email,
		Kind:             KindAccess,
	}
}

// NewRefreshClaims builds claims for a refresh token. The random jti makes
// two refresh tokens minted in the same second still differ byte-wise, which
// rotation relies on.
func NewRefreshClaims(subject string, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, ttl, issuer, now),
		Kind:             KindRefresh,
	}
}

func registered(subject string, ttl time.Duration, issuer string, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateKind makes sure the token belongs to the expected class.
func (c *Claims) ValidateKind(expected Kind) error {
	if c.Kind != expected {
		return ErrWrongKind
	}
	return nil
}

// ValidateExpiryAt ensures the token hasn't expired (exp) and isn't before
// nbf at the given instant.
func (c *Claims) ValidateExpiryAt(now time.Time) error {
	// Check expired (exp)
	if c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}

	// Check if a valid token isn't used before it is valid (nbf)
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}
