package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAccessGate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	sess := env.register(t, "gate@example.com")

	t.Run("valid", func(t *testing.T) {
		u, err := env.gate.Authenticate(ctx, bearer(sess.AccessToken))
		require.NoError(t, err)
		require.Equal(t, sess.User.ID, u.ID)
	})

	t.Run("lower case scheme", func(t *testing.T) {
		h := http.Header{}
		h.Set("Authorization", "bearer "+sess.AccessToken)
		_, err := env.gate.Authenticate(ctx, h)
		require.NoError(t, err)
	})

	missing := map[string]string{
		"absent":      "",
		"basic":       "Basic dXNlcjpwYXNz",
		"empty token": "Bearer ",
	}
	for name, value := range missing {
		t.Run(name, func(t *testing.T) {
			h := http.Header{}
			if value != "" {
				h.Set("Authorization", value)
			}
			_, err := env.gate.Authenticate(ctx, h)
			require.ErrorIs(t, err, ErrMissingCredential)
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := env.gate.Authenticate(ctx, bearer("a.b.c"))
		require.ErrorIs(t, err, ErrInvalidOrExpiredAccess)
	})

	t.Run("refresh token", func(t *testing.T) {
		_, err := env.gate.Authenticate(ctx, bearer(sess.RefreshToken))
		require.ErrorIs(t, err, ErrInvalidOrExpiredAccess)
	})
}

func TestAccessGateExpiry(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	sess := env.register(t, "expiry@example.com")

	env.clock.Advance(14*time.Minute + 59*time.Second)
	_, err := env.gate.Authenticate(ctx, bearer(sess.AccessToken))
	require.NoError(t, err)

	env.clock.Advance(2 * time.Second)
	_, err = env.gate.Authenticate(ctx, bearer(sess.AccessToken))
	require.ErrorIs(t, err, ErrInvalidOrExpiredAccess)
}

func TestAccessGateRejectsDeletedUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	sess := env.register(t, "deleted@example.com")
	require.NoError(t, env.store.Users().DeleteUser(ctx, sess.User.ID))

	_, err := env.gate.Authenticate(ctx, bearer(sess.AccessToken))
	require.ErrorIs(t, err, ErrInvalidOrExpiredAccess)
}
