package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// The image build must be reproducible from the committed module graph.
func TestDockerfileBuildsFromLockedModules(t *testing.T) {
	raw, err := os.ReadFile("Dockerfile")
	require.NoError(t, err)
	dockerfile := string(raw)

	t.Run("go.sum is committed", func(t *testing.T) {
		info, err := os.Stat(filepath.Join("..", "..", "go.sum"))
		require.NoError(t, err)
		require.NotZero(t, info.Size())
	})

	t.Run("copies the lock file before download", func(t *testing.T) {
		copyAt := strings.Index(dockerfile, "COPY go.mod go.sum ./")
		downloadAt := strings.Index(dockerfile, "RUN go mod download")
		require.GreaterOrEqual(t, copyAt, 0)
		require.Greater(t, downloadAt, copyAt)
	})

	t.Run("never rewrites the module graph", func(t *testing.T) {
		require.NotContains(t, dockerfile, "go mod tidy")
		require.NotContains(t, dockerfile, "go get")
	})
}
