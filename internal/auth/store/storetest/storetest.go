// Package storetest is a conformance suite every store driver runs against
// itself, so the session services can rely on identical semantics no matter
// which backend is configured.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
	"github.com/aussiebroadwan/marquee/internal/auth/store"
	"github.com/aussiebroadwan/marquee/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, migrated and empty store. It should register its
// own cleanup.
type Factory func(t *testing.T) store.Store

// Run executes the whole suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("SaveRefreshToken", func(t *testing.T) { testSaveRefreshToken(t, newStore(t)) })
	t.Run("CompareAndSwap", func(t *testing.T) { testCompareAndSwap(t, newStore(t)) })
	t.Run("CompareAndSwapRace", func(t *testing.T) { testCompareAndSwapRace(t, newStore(t)) })
	t.Run("ClearExpired", func(t *testing.T) { testClearExpired(t, newStore(t)) })
	t.Run("DeleteUser", func(t *testing.T) { testDeleteUser(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

// NewUser builds a user with a unique id and email.
func NewUser(email string) domain.User {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.User{
		ID:           idx.New().String(),
		Name:         "Test " + email,
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=64,t=1,p=1$c2FsdA$aGFzaA",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func mustCreate(t *testing.T, s store.Store, email string) domain.User {
	t.Helper()
	u := NewUser(email)
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "ada@example.com")

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, u.Name, got.Name)
	require.Equal(t, u.Email, got.Email)
	require.Equal(t, u.PasswordHash, got.PasswordHash)
	require.Empty(t, got.CurrentRefreshToken)
	require.Nil(t, got.RefreshExpiresAt)
	require.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Second)

	byEmail, err := s.Users().GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
}

func testDuplicateEmail(t *testing.T, s store.Store) {
	mustCreate(t, s, "dup@example.com")

	err := s.Users().CreateUser(context.Background(), NewUser("dup@example.com"))
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	missing := idx.New().String()

	_, err := s.Users().GetUserByID(ctx, missing)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Users().GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Users().GetUserByRefreshToken(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)

	// An empty token never matches a signed-out user.
	mustCreate(t, s, "signedout@example.com")
	_, err = s.Users().GetUserByRefreshToken(ctx, "")
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.Users().SaveRefreshToken(ctx, missing, "r1", time.Now().Add(time.Hour))
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Users().CompareAndSwapRefreshToken(ctx, missing, "", "r1", nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testSaveRefreshToken(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "save@example.com")
	exp := time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, s.Users().SaveRefreshToken(ctx, u.ID, "r1", exp))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "r1", got.CurrentRefreshToken)
	require.NotNil(t, got.RefreshExpiresAt)
	require.WithinDuration(t, exp, *got.RefreshExpiresAt, time.Second)

	byToken, err := s.Users().GetUserByRefreshToken(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, u.ID, byToken.ID)

	// Overwrite is unconditional and the old value stops resolving.
	require.NoError(t, s.Users().SaveRefreshToken(ctx, u.ID, "r2", exp))
	_, err = s.Users().GetUserByRefreshToken(ctx, "r1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testCompareAndSwap(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "cas@example.com")
	exp := time.Now().Add(time.Hour)

	require.NoError(t, s.Users().SaveRefreshToken(ctx, u.ID, "r1", exp))

	t.Run("mismatch leaves value untouched", func(t *testing.T) {
		ok, err := s.Users().CompareAndSwapRefreshToken(ctx, u.ID, "r0", "rX", &exp)
		require.NoError(t, err)
		require.False(t, ok)

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "r1", got.CurrentRefreshToken)
	})

	t.Run("match swaps", func(t *testing.T) {
		ok, err := s.Users().CompareAndSwapRefreshToken(ctx, u.ID, "r1", "r2", &exp)
		require.NoError(t, err)
		require.True(t, ok)

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "r2", got.CurrentRefreshToken)
	})

	t.Run("old value no longer matches", func(t *testing.T) {
		ok, err := s.Users().CompareAndSwapRefreshToken(ctx, u.ID, "r1", "r3", &exp)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("swap to empty clears expiry", func(t *testing.T) {
		ok, err := s.Users().CompareAndSwapRefreshToken(ctx, u.ID, "r2", "", nil)
		require.NoError(t, err)
		require.True(t, ok)

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Empty(t, got.CurrentRefreshToken)
		require.Nil(t, got.RefreshExpiresAt)
	})
}

func testCompareAndSwapRace(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "race@example.com")
	exp := time.Now().Add(time.Hour)
	require.NoError(t, s.Users().SaveRefreshToken(ctx, u.ID, "r1", exp))

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	start := make(chan struct{})
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			next := fmt.Sprintf("r2-%d", i)
			ok, err := s.Users().CompareAndSwapRefreshToken(ctx, u.ID, "r1", next, &exp)
			if err != nil {
				t.Errorf("cas: %v", err)
				return
			}
			if ok {
				mu.Lock()
				winners = append(winners, next)
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1, "exactly one concurrent rotation may win")

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, winners[0], got.CurrentRefreshToken)
}

func testClearExpired(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	expired := mustCreate(t, s, "expired@example.com")
	live := mustCreate(t, s, "live@example.com")
	signedOut := mustCreate(t, s, "out@example.com")

	require.NoError(t, s.Users().SaveRefreshToken(ctx, expired.ID, "old", now.Add(-time.Hour)))
	require.NoError(t, s.Users().SaveRefreshToken(ctx, live.ID, "fresh", now.Add(time.Hour)))

	n, err := s.Users().ClearExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := s.Users().GetUserByID(ctx, expired.ID)
	require.NoError(t, err)
	require.Empty(t, got.CurrentRefreshToken)
	require.Nil(t, got.RefreshExpiresAt)

	got, err = s.Users().GetUserByID(ctx, live.ID)
	require.NoError(t, err)
	require.Equal(t, "fresh", got.CurrentRefreshToken)

	got, err = s.Users().GetUserByID(ctx, signedOut.ID)
	require.NoError(t, err)
	require.Empty(t, got.CurrentRefreshToken)

	// Idempotent
	n, err = s.Users().ClearExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.Zero(t, n)
}

func testDeleteUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "gone@example.com")
	require.NoError(t, s.Users().SaveRefreshToken(ctx, u.ID, "r1", time.Now().Add(time.Hour)))

	require.NoError(t, s.Users().DeleteUser(ctx, u.ID))

	_, err := s.Users().GetUserByID(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Users().GetUserByEmail(ctx, u.Email)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Users().GetUserByRefreshToken(ctx, "r1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.Users().DeleteUser(ctx, u.ID), store.ErrNotFound)

	// The email is free again.
	require.NoError(t, s.Users().CreateUser(ctx, NewUser(u.Email)))
}
