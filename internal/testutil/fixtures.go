package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

// ReplayFixtureDir returns testdata/replay.
func ReplayFixtureDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(GetTestDataDir(t), "replay")
}

// ReplayFixtures lists the replay scripts under testdata/replay, sorted.
func ReplayFixtures(t *testing.T) []string {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join(ReplayFixtureDir(t), "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no replay fixtures found")
	slices.Sort(paths)
	return paths
}

// WriteFile writes content to name inside a per-test temp directory and
// returns the full path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "Failed to write fixture file: %s", path)
	return path
}
