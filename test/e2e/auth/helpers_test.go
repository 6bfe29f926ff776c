package auth_test

import (
	"context"
	"flag"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/aussiebroadwan/marquee/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for auth service end-to-end tests.
 * This includes container setup, session operations, and assertions.
 */

const (
	testImageName = "marquee-auth-test:latest"

	testPassword = "correct horse battery staple"
)

// TestMain builds the Docker image once before all tests and cleans it up
// after all tests complete.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	fmt.Fprintf(os.Stdout, "Building Auth Service Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up Auth Service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

// buildDockerImage builds the test Docker image.
func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

// cleanupDockerImage removes the test Docker image.
func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Ignore errors - image might not exist
}

// baseEnv is the environment every test container starts with. Rate limits
// are raised so rapid test traffic is not throttled.
func baseEnv() map[string]string {
	return map[string]string{
		"AUTH_DATABASE_FILE": "/data/auth.db",
		"AUTH_BOLT_FILE":     "/data/auth.bolt",
		"AUTH_PEPPER_FILE":   "/data/pepper",
		"AUTH_ISSUER":        "marquee-auth",
		"ENV":                "test",
		"LOG_LEVEL":          "info",
		"LOG_FORMAT":         "json",

		"RATELIMIT_STRICT_REQUESTS":   "1000",
		"RATELIMIT_STRICT_BURST":      "1000",
		"RATELIMIT_MODERATE_REQUESTS": "1000",
		"RATELIMIT_MODERATE_BURST":    "1000",
	}
}

// setupAuthContainer starts the auth service in a container and returns the
// base URL. overrides are merged over baseEnv; an empty value removes a key.
func setupAuthContainer(t *testing.T, overrides map[string]string) string {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e tests need docker")
	}
	ctx := context.Background()

	env := baseEnv()
	maps.Copy(env, overrides)
	maps.DeleteFunc(env, func(_, v string) bool { return v == "" })

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

// registerUser creates an account through a fresh client and coordinator,
// returning both signed in. The client owns the cookie jar.
func registerUser(t *testing.T, baseURL, email string) (*authsdk.SDKClient, *authsdk.TokenCoordinator, *authsdk.AuthResponse) {
	t.Helper()

	client := authsdk.NewSDKClient(baseURL)
	c := authsdk.NewTokenCoordinator(client)
	auth, err := c.Register(t.Context(), authsdk.RegisterRequest{Email: email, Password: testPassword})
	require.NoError(t, err, "Register should succeed")
	assertAuthResponse(t, auth, email)

	return client, c, auth
}

// refreshCookie returns the refresh cookie value held in client's jar.
func refreshCookie(t *testing.T, client *authsdk.SDKClient) string {
	t.Helper()

	u, err := url.Parse(client.BaseURL)
	require.NoError(t, err)

	for _, c := range client.HTTPClient.Jar.Cookies(u) {
		if c.Name == "refreshToken" {
			return c.Value
		}
	}
	return ""
}

// presentRefresh posts a specific refresh token outside any jar, the way a
// thief replaying a stolen cookie would.
func presentRefresh(t *testing.T, baseURL, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, baseURL+authsdk.PathRefresh, nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: token})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// assertAuthResponse verifies an auth response has all required fields.
func assertAuthResponse(t *testing.T, auth *authsdk.AuthResponse, email string) {
	t.Helper()
	require.NotNil(t, auth)
	require.NotEmpty(t, auth.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, auth.User.ID, "User ID should not be empty")
	require.Equal(t, email, auth.User.Email)
}

// assertAPIError checks err is an APIError with the given status and code.
func assertAPIError(t *testing.T, err error, status int, target *authsdk.APIError) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, target)

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
