package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codescan.yaml")

	output, err := executeCommand(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote default configuration to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var written map[string]any
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Contains(t, written, "scanner")
	assert.Contains(t, written, "server")
}

func TestConfigShow(t *testing.T) {
	output, err := executeCommand(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "scan_mode: continuous")
	assert.Contains(t, output, "Environment prefix: CODESCAN")
}

func TestConfigShowRejectsArgs(t *testing.T) {
	_, err := executeCommand(t, "config", "show", "extra")
	require.Error(t, err)
}
