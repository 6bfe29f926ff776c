package jwtx_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/marquee/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var (
	accessSecret  = []byte("access-secret-0123456789abcdef-0123456789")
	refreshSecret = []byte("refresh-secret-0123456789abcdef-012345678")
)

// fakeClock is a settable clock shared by signing and verification.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCodec(t *testing.T, clock *fakeClock) *jwtx.Codec {
	t.Helper()

	cfg := jwtx.CodecConfig{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		Issuer:        "marquee-auth",
	}
	if clock != nil {
		cfg.Now = clock.Now
	}

	codec, err := jwtx.NewCodec(cfg)
	require.NoError(t, err)
	return codec
}

func TestNewCodec(t *testing.T) {
	t.Parallel()

	t.Run("rejects shared secret", func(t *testing.T) {
		_, err := jwtx.NewCodec(jwtx.CodecConfig{AccessSecret: accessSecret, RefreshSecret: accessSecret})
		require.ErrorIs(t, err, jwtx.ErrSharedSecret)
	})

	t.Run("rejects weak secret", func(t *testing.T) {
		_, err := jwtx.NewCodec(jwtx.CodecConfig{AccessSecret: []byte("short"), RefreshSecret: refreshSecret})
		require.ErrorIs(t, err, jwtx.ErrWeakSecret)
	})

	t.Run("applies default lifetimes", func(t *testing.T) {
		codec := newTestCodec(t, nil)
		require.Equal(t, jwtx.DefaultAccessTokenTTL, codec.AccessTTL())
		require.Equal(t, jwtx.DefaultRefreshTokenTTL, codec.RefreshTTL())
	})
}

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	codec := newTestCodec(t, clock)

	t.Run("access round trip", func(t *testing.T) {
		token, exp, err := codec.SignAccess("user-1", "u1@example.com")
		require.NoError(t, err)
		require.WithinDuration(t, clock.Now().Add(15*time.Minute), exp, 0)

		claims, err := codec.VerifyAccess(token)
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
		require.Equal(t, "u1@example.com", claims.Email)
		require.Equal(t, jwtx.KindAccess, claims.Kind)
		require.Equal(t, "marquee-auth", claims.Issuer)
	})

	t.Run("refresh round trip", func(t *testing.T) {
		token, exp, err := codec.SignRefresh("user-1")
		require.NoError(t, err)
		require.WithinDuration(t, clock.Now().Add(7*24*time.Hour), exp, 0)

		claims, err := codec.VerifyRefresh(token)
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
		require.Empty(t, claims.Email)
	})

	t.Run("refresh tokens never repeat", func(t *testing.T) {
		a, _, err := codec.SignRefresh("user-1")
		require.NoError(t, err)
		b, _, err := codec.SignRefresh("user-1")
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, nil)

	access, _, err := codec.SignAccess("user-1", "u1@example.com")
	require.NoError(t, err)
	refresh, _, err := codec.SignRefresh("user-1")
	require.NoError(t, err)

	t.Run("refresh token is not an access token", func(t *testing.T) {
		_, err := codec.VerifyAccess(refresh)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := codec.VerifyRefresh(access)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(access, ".")
		require.Len(t, parts, 3)
		forged := jwtx.NewAccessClaims("admin", "root@example.com", time.Hour, "marquee-auth", time.Now())
		other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, forged).SignedString([]byte("attacker-secret-0123456789abcdef-0123"))
		require.NoError(t, err)
		otherParts := strings.Split(other, ".")

		_, err = codec.VerifyAccess(parts[0] + "." + otherParts[1] + "." + parts[2])
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("alg none", func(t *testing.T) {
		claims := jwtx.NewAccessClaims("user-1", "u1@example.com", time.Hour, "marquee-auth", time.Now())
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = codec.VerifyAccess(unsigned)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := codec.VerifyAccess("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestAccessTokenExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	codec := newTestCodec(t, clock)

	token, _, err := codec.SignAccess("user-1", "u1@example.com")
	require.NoError(t, err)

	clock.Advance(14*time.Minute + 59*time.Second)
	_, err = codec.VerifyAccess(token)
	require.NoError(t, err, "still inside the 15 minute window")

	clock.Advance(2 * time.Second)
	_, err = codec.VerifyAccess(token)
	require.ErrorIs(t, err, jwtx.ErrExpired, "correct signature but past exp")
}

func TestRefreshTokenExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	codec := newTestCodec(t, clock)

	token, _, err := codec.SignRefresh("user-1")
	require.NoError(t, err)

	clock.Advance(7*24*time.Hour + time.Second)
	_, err = codec.VerifyRefresh(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestVerifierChecksKind(t *testing.T) {
	t.Parallel()

	signer, err := jwtx.NewSignerHS256(accessSecret)
	require.NoError(t, err)

	token, err := signer.Sign(jwtx.NewRefreshClaims("user-1", time.Hour, "", time.Now()))
	require.NoError(t, err)

	v := jwtx.NewVerifierHS256(accessSecret, "", jwtx.KindAccess, nil)
	_, err = v.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrWrongKind)
}

func TestVerifierTimeClaims(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	signer, err := jwtx.NewSignerHS256(accessSecret)
	require.NoError(t, err)
	v := jwtx.NewVerifierHS256(accessSecret, "", jwtx.KindAccess, func() time.Time { return now })

	sign := func(t *testing.T, rc jwt.RegisteredClaims) string {
		t.Helper()
		rc.Subject = "user-1"
		token, err := signer.Sign(jwtx.Claims{RegisteredClaims: rc, Kind: jwtx.KindAccess})
		require.NoError(t, err)
		return token
	}

	t.Run("missing exp", func(t *testing.T) {
		_, err := v.Verify(sign(t, jwt.RegisteredClaims{}))
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("nbf in the future", func(t *testing.T) {
		_, err := v.Verify(sign(t, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			NotBefore: jwt.NewNumericDate(now.Add(time.Minute)),
		}))
		require.ErrorIs(t, err, jwtx.ErrNotYetValid)
	})

	t.Run("exactly at exp", func(t *testing.T) {
		_, err := v.Verify(sign(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now)}))
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("one second before exp", func(t *testing.T) {
		claims, err := v.Verify(sign(t, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Second)),
			NotBefore: jwt.NewNumericDate(now),
		}))
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
	})
}
