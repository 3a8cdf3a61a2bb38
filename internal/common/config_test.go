package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pharmascout.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "https://synapse.patsnap.com/", config.Pipeline.StartURL)
	assert.Equal(t, "60s", config.Pipeline.NavigationTimeout)
	assert.Equal(t, "90s", config.Dispatcher.UnitTimeout)
	assert.Equal(t, 5, config.Dispatcher.MaxConcurrency)
	assert.Equal(t, 2, config.Dispatcher.MinConcurrency)
	assert.Equal(t, []string{"image", "font", "media"}, config.Browser.BlockResourceTypes)
	assert.Contains(t, config.Browser.BlockHosts, "googletagmanager")
	assert.NoError(t, config.Validate())
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	t.Setenv("PORT", "")
	first := writeConfig(t, `
[server]
port = 9000

[browser]
driver = "playwright"
`)
	second := writeConfig(t, `
[server]
host = "0.0.0.0"

[dispatcher]
max_concurrency = 8

[scheduler]
enabled = true
schedule = "0 30 5 * * *"
companies = ["Acme Bio", "Beta"]
`)

	config, err := LoadFromFiles(first, "", second)
	require.NoError(t, err)

	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, "playwright", config.Browser.Driver)
	assert.Equal(t, 8, config.Dispatcher.MaxConcurrency)
	assert.Equal(t, []string{"Acme Bio", "Beta"}, config.Scheduler.Companies)
	// Untouched values keep their defaults
	assert.Equal(t, "90s", config.Dispatcher.UnitTimeout)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFromFiles(writeConfig(t, "[server\nport = "))
	assert.Error(t, err)

	_, err = LoadFromFiles(writeConfig(t, "[browser]\ndriver = \"selenium\"\n"))
	assert.Error(t, err)

	_, err = LoadFromFiles(writeConfig(t, "[scheduler]\nenabled = true\nschedule = \"daily\"\n"))
	assert.Error(t, err)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PHARMASCOUT_SERVER_PORT", "7070")
	t.Setenv("PHARMASCOUT_BROWSER_HEADLESS", "false")
	t.Setenv("PHARMASCOUT_MAX_CONCURRENCY", "3")
	t.Setenv("PHARMASCOUT_PROXY_URL", "http://proxy.local:8080")
	t.Setenv("PHARMASCOUT_SCHEDULER_COMPANIES", "Acme, ,Beta ")
	t.Setenv("PHARMASCOUT_LOG_OUTPUT", "stdout")
	t.Setenv("PHARMASCOUT_NATS_URL", "nats://localhost:4222")

	config, err := LoadFromFiles(writeConfig(t, "[server]\nport = 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 7070, config.Server.Port)
	assert.False(t, config.Browser.Headless)
	assert.Equal(t, 3, config.Dispatcher.MaxConcurrency)
	assert.Equal(t, "http://proxy.local:8080", config.Dispatcher.ProxyURL)
	assert.Equal(t, []string{"Acme", "Beta"}, config.Scheduler.Companies)
	assert.Equal(t, []string{"stdout"}, config.Logging.Output)
	assert.Equal(t, "nats://localhost:4222", config.Publish.NATSURL)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)

	ApplyFlagOverrides(config, 9999, "127.0.0.1")
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, ParseDuration("3s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("-1s", time.Minute))
}

func TestIsProduction(t *testing.T) {
	config := NewDefaultConfig()
	assert.False(t, config.IsProduction())
	config.Environment = " Prod "
	assert.True(t, config.IsProduction())
}
