package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	sess := env.register(t, "  Ada@Example.com ")
	require.NotEmpty(t, sess.AccessToken)
	require.NotEmpty(t, sess.RefreshToken)
	require.Equal(t, "ada@example.com", sess.User.Email)
	require.Equal(t, sess.RefreshToken, env.storedToken(t, sess.User.ID))

	t.Run("duplicate email", func(t *testing.T) {
		_, err := env.accounts.Register(ctx, RegisterInput{Email: "ADA@example.com", Password: "x"})
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("name defaults to email local part", func(t *testing.T) {
		sess, err := env.accounts.Register(ctx, RegisterInput{Email: "grace@example.com", Password: "pw"})
		require.NoError(t, err)
		require.Equal(t, "grace", sess.User.Name)
	})

	invalid := []RegisterInput{
		{Email: "", Password: "pw"},
		{Email: "no-at-sign", Password: "pw"},
		{Email: "@example.com", Password: "pw"},
		{Email: "x@example.com", Password: ""},
	}
	for _, in := range invalid {
		t.Run("invalid "+in.Email, func(t *testing.T) {
			_, err := env.accounts.Register(ctx, in)
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.register(t, "login@example.com")

	t.Run("wrong password", func(t *testing.T) {
		_, err := env.accounts.Login(ctx, "login@example.com", "nope")
		require.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := env.accounts.Login(ctx, "ghost@example.com", "nope")
		require.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := env.accounts.Login(ctx, "", "pw")
		require.ErrorIs(t, err, ErrInvalidRequest)
		_, err = env.accounts.Login(ctx, "login@example.com", "")
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("new login ends the previous session", func(t *testing.T) {
		second, err := env.accounts.Login(ctx, "LOGIN@example.com", "correct horse battery staple")
		require.NoError(t, err)
		require.NotEqual(t, first.RefreshToken, second.RefreshToken)

		_, err = env.rotator.Rotate(ctx, first.RefreshToken)
		require.ErrorIs(t, err, ErrReuseDetected)

		_, err = env.rotator.Rotate(ctx, second.RefreshToken)
		require.NoError(t, err)
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	sess := env.register(t, "logout@example.com")

	require.NoError(t, env.accounts.Logout(ctx, ""), "no cookie is not an error")
	require.NoError(t, env.accounts.Logout(ctx, "unknown-token"))

	require.NoError(t, env.accounts.Logout(ctx, sess.RefreshToken))
	require.Empty(t, env.storedToken(t, sess.User.ID))

	// The signed-out token no longer refreshes.
	_, err := env.rotator.Rotate(ctx, sess.RefreshToken)
	require.ErrorIs(t, err, ErrReuseDetected)

	// Idempotent
	require.NoError(t, env.accounts.Logout(ctx, sess.RefreshToken))
}
