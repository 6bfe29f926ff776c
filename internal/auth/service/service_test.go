package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
	"github.com/aussiebroadwan/marquee/internal/auth/store"
	"github.com/aussiebroadwan/marquee/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/marquee/pkg/cryptox"
	"github.com/aussiebroadwan/marquee/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv wires every service against one store and one clock.
type testEnv struct {
	clock    *testClock
	codec    *jwtx.Codec
	store    store.Store
	issuer   *SessionIssuer
	rotator  *RefreshRotator
	gate     *AccessGate
	accounts *AccountService
}

func newTestCodec(t *testing.T, clock *testClock) *jwtx.Codec {
	t.Helper()

	codec, err := jwtx.NewCodec(jwtx.CodecConfig{
		AccessSecret:  []byte("test-access-secret-0123456789abcdef"),
		RefreshSecret: []byte("test-refresh-secret-0123456789abcdef"),
		Issuer:        "marquee-auth",
		Now:           clock.Now,
	})
	require.NoError(t, err)
	return codec
}

func newTestHasher() *cryptox.PasswordHasher {
	return cryptox.NewPasswordHasherWithParams("test-pepper", cryptox.Argon2Params{
		Memory:      64,
		Iterations:  1,
		Parallelism: 1,
		KeyLength:   32,
		SaltLength:  16,
	})
}

func newEnvWithStore(t *testing.T, s store.Store) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	codec := newTestCodec(t, clock)
	issuer := &SessionIssuer{Codec: codec, Store: s}

	return &testEnv{
		clock:    clock,
		codec:    codec,
		store:    s,
		issuer:   issuer,
		rotator:  &RefreshRotator{Codec: codec, Store: s, Issuer: issuer},
		gate:     &AccessGate{Codec: codec, Store: s},
		accounts: &AccountService{Store: s, Hasher: newTestHasher(), Issuer: issuer},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	return newEnvWithStore(t, s)
}

func (e *testEnv) register(t *testing.T, email string) *domain.Session {
	t.Helper()

	sess, err := e.accounts.Register(context.Background(), RegisterInput{
		Name:     "Test",
		Email:    email,
		Password: "correct horse battery staple",
	})
	require.NoError(t, err)
	return sess
}

func (e *testEnv) storedToken(t *testing.T, userID string) string {
	t.Helper()

	u, err := e.store.Users().GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	return u.CurrentRefreshToken
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
