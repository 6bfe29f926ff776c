package app

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/aussiebroadwan/marquee/pkg/authsdk"
	"github.com/aussiebroadwan/marquee/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slogx.Discard() }

func testConfig(t *testing.T, driver string) Config {
	t.Helper()
	dir := t.TempDir()

	return Config{
		Issuer:               "marquee-auth",
		AccessTTL:            15 * time.Minute,
		RefreshTTL:           time.Hour,
		StoreDriver:          driver,
		DatabaseFile:         filepath.Join(dir, "auth.db"),
		BoltFile:             filepath.Join(dir, "auth.bolt"),
		PepperFile:           filepath.Join(dir, "pepper"),
		Env:                  "test",
		LogLevel:             "error",
		LogFormat:            "text",
		Port:                 8080,
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
	}
}

func TestNewServesSessions(t *testing.T) {
	for _, driver := range []string{DriverSQLite, DriverBolt} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()

			application, err := New(ctx, testConfig(t, driver), "test")
			require.NoError(t, err)
			t.Cleanup(func() { _ = application.db.Close() })

			srv := httptest.NewServer(application.Handler())
			t.Cleanup(srv.Close)

			c := authsdk.NewTokenCoordinator(authsdk.NewSDKClient(srv.URL))
			auth, err := c.Register(ctx, authsdk.RegisterRequest{Email: "ada@example.com", Password: "pw"})
			require.NoError(t, err)

			user, err := c.Profile(ctx)
			require.NoError(t, err)
			require.Equal(t, auth.User.ID, user.ID)

			live, err := authsdk.NewSDKClient(srv.URL).GetLiveness(ctx)
			require.NoError(t, err)
			require.Equal(t, "test", live.Version)
		})
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), testConfig(t, "mongo"), "test")
	require.Error(t, err)
}

func TestNewRequiresSecretsInProd(t *testing.T) {
	cfg := testConfig(t, DriverSQLite)
	cfg.Env = "prod"

	_, err := New(context.Background(), cfg, "test")
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, DriverSQLite)
	cfg.Port = freePort(t)

	application, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.Port) + "/livez"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
