package auth_test

import (
	"testing"

	"github.com/aussiebroadwan/marquee/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestHealthEndpoints verifies liveness and readiness on the default sqlite
// store.
func TestHealthEndpoints(t *testing.T) {
	baseURL := setupAuthContainer(t, nil)
	client := authsdk.NewSDKClient(baseURL)

	health, err := client.GetLiveness(t.Context())
	assertHealthy(t, health, err)
	require.NotEmpty(t, health.Version)

	health, err = client.GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Store)
}
