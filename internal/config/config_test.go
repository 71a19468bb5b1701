package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8100", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "unrestricted", cfg.Security.Mode)
	assert.Equal(t, 19723, cfg.Remote.ScanPortStart)
	assert.Equal(t, 19743, cfg.Remote.ScanPortEnd)
	assert.Equal(t, "AutomationCommand", cfg.Remote.AddOnNamespace)
	assert.Equal(t, time.Second, cfg.Remote.ProbeTimeout)
	assert.Equal(t, 30*time.Second, cfg.Remote.CommandTimeout)
	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CADBRIDGE_PORT", "9000")
	t.Setenv("CADBRIDGE_SECURITY", "sandboxed")
	t.Setenv("CADBRIDGE_BLOCKED_PATHS", "/etc/*;/var/*")
	t.Setenv("CADBRIDGE_SCAN_PORT_END", "19730")
	t.Setenv("CADBRIDGE_PROBE_TIMEOUT", "250ms")
	t.Setenv("CADBRIDGE_RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "sandboxed", cfg.Security.Mode)
	assert.Equal(t, "/etc/*;/var/*", cfg.Security.BlockedPaths)
	assert.Equal(t, 19730, cfg.Remote.ScanPortEnd)
	assert.Equal(t, 250*time.Millisecond, cfg.Remote.ProbeTimeout)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("CADBRIDGE_SCAN_PORT_START", "notanumber")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 19723, cfg.Remote.ScanPortStart)
}

func TestDefaultMatchesLoad(t *testing.T) {
	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)
}
