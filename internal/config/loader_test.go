package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadFrom_NoSources(t *testing.T) {
	t.Cleanup(viper.Reset)
	err := LoadFrom(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no configuration sources found")
}

func TestLoadFrom_ProfileOverridesBase(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("APP_ENV", "Staging")
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "conf", "config.toml"), `
[relay]
http_port = 8080
log_level = "info"

[topics]
device_prefix = "bluetti/AC200"
`)
	writeFile(t, filepath.Join(dir, "conf", "staging.config.toml"), `
[relay]
log_level = "debug"
`)

	require.NoError(t, LoadFrom(dir))
	assert.Equal(t, "staging", Profile())
	assert.Equal(t, 8080, viper.GetInt(RelayHTTPPort))
	assert.Equal(t, "debug", viper.GetString(RelayLogLevel))
	assert.Equal(t, "bluetti/AC200", viper.GetString(TopicDevicePrefix))
}

func TestLoadFrom_EnvironmentWins(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "conf", "config.toml"), "[router]\nqueue_size = 32\n")
	t.Setenv("ROUTER__QUEUE_SIZE", "64")

	require.NoError(t, LoadFrom(dir))
	assert.Equal(t, 64, viper.GetInt(RouterQueueSize))
}
