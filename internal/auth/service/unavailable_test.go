package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
	"github.com/aussiebroadwan/marquee/internal/auth/store/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var errBackend = errors.New("connection refused")

func newMockEnv(t *testing.T) (*testEnv, *mock.MockUsers) {
	t.Helper()

	ctrl := gomock.NewController(t)
	users := mock.NewMockUsers(ctrl)
	s := mock.NewMockStore(ctrl)
	s.EXPECT().Users().Return(users).AnyTimes()

	return newEnvWithStore(t, s), users
}

func TestStoreUnavailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	user := domain.User{ID: "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", Email: "ada@example.com"}

	t.Run("issue returns no tokens", func(t *testing.T) {
		env, users := newMockEnv(t)
		users.EXPECT().
			SaveRefreshToken(gomock.Any(), user.ID, gomock.Any(), gomock.Any()).
			Return(errBackend)

		sess, err := env.issuer.Issue(ctx, user)
		require.ErrorIs(t, err, ErrStoreUnavailable)
		require.Nil(t, sess)
	})

	t.Run("login lookup", func(t *testing.T) {
		env, users := newMockEnv(t)
		users.EXPECT().GetUserByEmail(gomock.Any(), "ada@example.com").Return(domain.User{}, errBackend)

		_, err := env.accounts.Login(ctx, "ada@example.com", "pw")
		require.ErrorIs(t, err, ErrStoreUnavailable)
		require.NotErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("gate lookup", func(t *testing.T) {
		env, users := newMockEnv(t)
		token, _, err := env.codec.SignAccess(user.ID, user.Email)
		require.NoError(t, err)
		users.EXPECT().GetUserByID(gomock.Any(), user.ID).Return(domain.User{}, errBackend)

		_, err = env.gate.Authenticate(ctx, bearer(token))
		require.ErrorIs(t, err, ErrStoreUnavailable)
	})

	t.Run("rotation swap", func(t *testing.T) {
		env, users := newMockEnv(t)
		token, _, err := env.codec.SignRefresh(user.ID)
		require.NoError(t, err)

		stored := user
		stored.CurrentRefreshToken = token
		users.EXPECT().GetUserByID(gomock.Any(), user.ID).Return(stored, nil)
		users.EXPECT().
			CompareAndSwapRefreshToken(gomock.Any(), user.ID, token, gomock.Any(), gomock.Any()).
			Return(false, errBackend)

		_, err = env.rotator.Rotate(ctx, token)
		require.ErrorIs(t, err, ErrStoreUnavailable)
	})

	t.Run("rotation lost race", func(t *testing.T) {
		env, users := newMockEnv(t)
		token, _, err := env.codec.SignRefresh(user.ID)
		require.NoError(t, err)

		stored := user
		stored.CurrentRefreshToken = token
		users.EXPECT().GetUserByID(gomock.Any(), user.ID).Return(stored, nil)
		users.EXPECT().
			CompareAndSwapRefreshToken(gomock.Any(), user.ID, token, gomock.Any(), gomock.Any()).
			Return(false, nil)

		_, err = env.rotator.Rotate(ctx, token)
		require.ErrorIs(t, err, ErrReuseDetected)
	})

	t.Run("logout lookup", func(t *testing.T) {
		env, users := newMockEnv(t)
		users.EXPECT().GetUserByRefreshToken(gomock.Any(), "r1").Return(domain.User{}, errBackend)

		require.ErrorIs(t, env.accounts.Logout(ctx, "r1"), ErrStoreUnavailable)
	})

	t.Run("housekeeping keeps running", func(t *testing.T) {
		env, users := newMockEnv(t)
		users.EXPECT().ClearExpiredRefreshTokens(gomock.Any(), gomock.Any()).Return(int64(0), errBackend)

		hk := NewHousekeepingService(env.store, discardLogger(), time.Hour)
		require.Zero(t, hk.Cleanup(ctx))
	})
}
