package jwtx

import (
	"crypto/subtle"
	"errors"
	"time"
)

var ErrSharedSecret = errors.New("jwtx: access and refresh secrets must differ")

// CodecConfig configures a Codec. Zero TTLs fall back to the defaults.
type CodecConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string

	// Now is the clock used for both signing and verification. Tests swap
	// it out to step over the expiry boundary.
	Now func() time.Time
}

// Codec signs and verifies the two token classes. Each class has its own
// secret, so compromising one key never lets you forge the other class.
// A Codec performs no I/O and is safe for concurrent use.
type Codec struct {
	accessSigner    *HS256Signer
	refreshSigner   *HS256Signer
	accessVerifier  *HS256Verifier
	refreshVerifier *HS256Verifier

	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

// NewCodec validates the key material and builds a Codec.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1 {
		return nil, ErrSharedSecret
	}

	accessSigner, err := NewSignerHS256(cfg.AccessSecret)
	if err != nil {
		return nil, err
	}
	refreshSigner, err := NewSignerHS256(cfg.RefreshSecret)
	if err != nil {
		return nil, err
	}

	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Codec{
		accessSigner:    accessSigner,
		refreshSigner:   refreshSigner,
		accessVerifier:  NewVerifierHS256(cfg.AccessSecret, cfg.Issuer, KindAccess, cfg.Now),
		refreshVerifier: NewVerifierHS256(cfg.RefreshSecret, cfg.Issuer, KindRefresh, cfg.Now),
		accessTTL:       cfg.AccessTTL,
		refreshTTL:      cfg.RefreshTTL,
		issuer:          cfg.Issuer,
		now:             cfg.Now,
	}, nil
}

// AccessTTL reports the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// SignAccess mints an access token for the subject. The expiry is absolute,
// measured from signing time.
func (c *Codec) SignAccess(subject, email string) (string, time.Time, error) {
	claims := NewAccessClaims(subject, email, c.accessTTL, c.issuer, c.now())
	token, err := c.accessSigner.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// SignRefresh mints a refresh token for the subject.
func (c *Codec) SignRefresh(subject string) (string, time.Time, error) {
	claims := NewRefreshClaims(subject, c.refreshTTL, c.issuer, c.now())
	token, err := c.refreshSigner.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// VerifyAccess validates a token against the access secret.
func (c *Codec) VerifyAccess(token string) (Claims, error) {
	return c.accessVerifier.Verify(token)
}

// VerifyRefresh validates a token against the refresh secret.
func (c *Codec) VerifyRefresh(token string) (Claims, error) {
	return c.refreshVerifier.Verify(token)
}
