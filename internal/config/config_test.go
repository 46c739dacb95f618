package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
[report]
path = "/srv/splunk"
keep = 3
node_name = "web01"
hidden_attributes = ["params"]
exclude_types = ["log"]

[snapshot]
path = "/tmp/snapshot.json"

[history]
enabled = true
path = "/srv/splunk/history.db"
retain = 50

[daemon]
interval = "5m"
watch = true

[metrics]
addr = ":9100"

[otel]
endpoint = "localhost:4317"
insecure = true
service_name = "facts"

[otel.traces]
enabled = true
sample_rate = 0.5

[otel.metrics]
enabled = true
prometheus = false

[log]
level = "debug"
format = "json"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/srv/splunk", cfg.Report.Path)
	assert.Equal(t, 3, cfg.Report.Keep)
	assert.Equal(t, "web01", cfg.Report.NodeName)
	assert.Equal(t, []string{"params"}, cfg.Report.HiddenAttributes)
	assert.Equal(t, []string{"log"}, cfg.Report.ExcludeTypes)
	assert.Equal(t, "/tmp/snapshot.json", cfg.Snapshot.Path)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, int64(50), cfg.History.Retain)
	assert.Equal(t, 5*time.Minute, cfg.Daemon.Interval)
	assert.True(t, cfg.Daemon.Watch)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, "localhost:4317", cfg.OTEL.Endpoint)
	assert.True(t, cfg.OTEL.Insecure)
	assert.Equal(t, "facts", cfg.OTEL.ServiceName)
	assert.True(t, cfg.OTEL.Traces.Enabled)
	assert.Equal(t, 0.5, cfg.OTEL.Traces.SampleRate)
	assert.True(t, cfg.OTEL.Metrics.Enabled)
	assert.False(t, cfg.OTEL.Metrics.Prometheus)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTempConfig(t, "")
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/var/chef/splunk", cfg.Report.Path)
	assert.Equal(t, 10, cfg.Report.Keep)
	assert.Equal(t, DefaultHiddenAttributes, cfg.Report.HiddenAttributes)
	assert.Equal(t, DefaultSnapshotPath, cfg.Snapshot.Path)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, int64(DefaultRetain), cfg.History.Retain)
	assert.Equal(t, 30*time.Minute, cfg.Daemon.Interval)
	assert.True(t, cfg.Daemon.Watch)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)
	assert.Equal(t, "nodefacts", cfg.OTEL.ServiceName)
	assert.True(t, cfg.OTEL.Metrics.Prometheus)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ExplicitZeroKeep(t *testing.T) {
	path := writeTempConfig(t, "[report]\nkeep = 0\n")
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Report.Keep)
}

func TestLoad_WatchDisabled(t *testing.T) {
	path := writeTempConfig(t, "[daemon]\nwatch = false\n")
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.False(t, cfg.Daemon.Watch)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultReportPath, cfg.Report.Path)
	assert.Equal(t, DefaultKeep, cfg.Report.Keep)
	assert.True(t, cfg.Daemon.Watch)
	require.NoError(t, cfg.Validate())
}

func TestDefault_HiddenAttributesIsCopy(t *testing.T) {
	cfg := Default()
	cfg.Report.HiddenAttributes[0] = "changed"

	assert.Equal(t, "allowed_actions", DefaultHiddenAttributes[0])
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	require.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	content := `
[report
path = 3
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	content := `
[daemon]
interval = "not-a-duration"
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"negative keep", func(c *Config) { c.Report.Keep = -1 }, "keep must not be negative"},
		{"empty path", func(c *Config) { c.Report.Path = "" }, "path required"},
		{"negative retain", func(c *Config) { c.History.Retain = -5 }, "retain"},
		{"zero interval", func(c *Config) { c.Daemon.Interval = 0 }, "interval must be positive"},
		{"sample rate", func(c *Config) { c.OTEL.Traces.SampleRate = 1.5 }, "sample_rate"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}
