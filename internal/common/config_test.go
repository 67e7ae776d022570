package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFilesDefaults(t *testing.T) {
	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 8190, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 5, config.Pipeline.MaxBatchFiles)
	assert.Equal(t, 2*time.Second, config.PollInterval())
	assert.Equal(t, time.Second, config.IndexSettleDelay())
	assert.Equal(t, 30*time.Second, config.BackendTimeout())
	assert.False(t, config.IsProduction())
}

func TestLoadFromFilesOverride(t *testing.T) {
	path := writeConfigFile(t, "vindex.toml", `
environment = "production"

[server]
port = 9000

[backend]
base_url = "http://backend:8000"
timeout = "10s"

[pipeline]
poll_interval = "500ms"
max_batch_files = 3
`)

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "http://backend:8000", config.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, config.BackendTimeout())
	assert.Equal(t, 500*time.Millisecond, config.PollInterval())
	assert.Equal(t, 3, config.Pipeline.MaxBatchFiles)
	assert.True(t, config.IsProduction())

	// Untouched sections keep their defaults
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 5, config.Backend.RateLimit)
}

func TestLoadFromFilesLaterFileWins(t *testing.T) {
	first := writeConfigFile(t, "base.toml", `
[server]
port = 9000
host = "0.0.0.0"
`)
	second := writeConfigFile(t, "override.toml", `
[server]
port = 9100
`)

	config, err := LoadFromFiles(first, second)
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host, "values absent from the later file survive")
}

func TestLoadFromFilesInvalidDuration(t *testing.T) {
	path := writeConfigFile(t, "bad.toml", `
[pipeline]
poll_interval = "soon"
`)

	_, err := LoadFromFiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/vindex.toml")
	assert.Error(t, err)
}

func TestValidateRejectsBadBaseURL(t *testing.T) {
	config := NewDefaultConfig()
	config.Backend.BaseURL = "not a url"

	assert.Error(t, config.Validate())
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 9999, "127.0.0.1")
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)

	// Zero values leave config untouched
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
}
