// Package config handles TOML configuration for nodefacts.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Report   ReportConfig   `toml:"report"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	History  HistoryConfig  `toml:"history"`
	Daemon   DaemonConfig   `toml:"daemon"`
	Metrics  ServerConfig   `toml:"metrics"`
	OTEL     OTELConfig     `toml:"otel"`
	Log      LogConfig      `toml:"log"`
}

// ReportConfig holds report output settings.
type ReportConfig struct {
	Path             string   `toml:"path"`
	KeepRaw          *int     `toml:"keep"`
	Keep             int      `toml:"-"`
	NodeName         string   `toml:"node_name"`
	HiddenAttributes []string `toml:"hidden_attributes"`
	ExcludeTypes     []string `toml:"exclude_types"`
}

// SnapshotConfig locates the host snapshot.
type SnapshotConfig struct {
	Path string `toml:"path"`
}

// HistoryConfig holds report history settings.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	Retain  int64  `toml:"retain"`
}

// DaemonConfig holds daemon settings.
type DaemonConfig struct {
	IntervalStr string `toml:"interval"`
	Interval    time.Duration
	WatchRaw    *bool `toml:"watch"`
	Watch       bool  `toml:"-"`
}

// ServerConfig holds the metrics/health HTTP server settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint"`
	Insecure    bool          `toml:"insecure"`
	ServiceName string        `toml:"service_name"`
	Traces      TracesConfig  `toml:"traces"`
	Metrics     MetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled       bool  `toml:"enabled"`
	PrometheusRaw *bool `toml:"prometheus"`
	Prometheus    bool  `toml:"-"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Defaults.
const (
	DefaultReportPath   = "/var/chef/splunk"
	DefaultKeep         = 10
	DefaultSnapshotPath = "/var/chef/cache/nodefacts.json"
	DefaultHistoryPath  = "/var/chef/splunk/history.db"
	DefaultRetain       = 500
	DefaultInterval     = "30m"
	DefaultMetricsAddr  = ":9464"
	DefaultServiceName  = "nodefacts"
)

// DefaultHiddenAttributes are resource fields never rendered as extras.
var DefaultHiddenAttributes = []string{
	"allowed_actions",
	"resource_name",
	"source_line",
	"run_context",
	"name",
	"node",
	"not_if",
	"only_if",
	"elapsed_time",
	"updated",
	"type",
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(cfg)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := finish(&Config{})
	if err != nil {
		// The built-in defaults always parse.
		panic(err)
	}
	return cfg
}

func finish(cfg *Config) (*Config, error) {
	applyDefaults(cfg)

	if err := parseInterval(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Report.Path == "" {
		cfg.Report.Path = DefaultReportPath
	}
	cfg.Report.Keep = DefaultKeep
	if cfg.Report.KeepRaw != nil {
		cfg.Report.Keep = *cfg.Report.KeepRaw
	}
	if cfg.Report.HiddenAttributes == nil {
		cfg.Report.HiddenAttributes = append([]string(nil), DefaultHiddenAttributes...)
	}
	if cfg.Snapshot.Path == "" {
		cfg.Snapshot.Path = DefaultSnapshotPath
	}
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.History.Retain == 0 {
		cfg.History.Retain = DefaultRetain
	}
	if cfg.Daemon.IntervalStr == "" {
		cfg.Daemon.IntervalStr = DefaultInterval
	}
	cfg.Daemon.Watch = true
	if cfg.Daemon.WatchRaw != nil {
		cfg.Daemon.Watch = *cfg.Daemon.WatchRaw
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = DefaultServiceName
	}
	cfg.OTEL.Metrics.Prometheus = true
	if cfg.OTEL.Metrics.PrometheusRaw != nil {
		cfg.OTEL.Metrics.Prometheus = *cfg.OTEL.Metrics.PrometheusRaw
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

func parseInterval(cfg *Config) error {
	d, err := time.ParseDuration(cfg.Daemon.IntervalStr)
	if err != nil {
		return fmt.Errorf("parse interval %q: %w", cfg.Daemon.IntervalStr, err)
	}
	cfg.Daemon.Interval = d
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.Report.Path == "" {
		return fmt.Errorf("report: path required")
	}
	if c.Report.Keep < 0 {
		return fmt.Errorf("report: keep must not be negative (got %d)", c.Report.Keep)
	}
	if c.History.Retain < 0 {
		return fmt.Errorf("history: retain must not be negative (got %d)", c.History.Retain)
	}
	if c.Daemon.Interval <= 0 {
		return fmt.Errorf("daemon: interval must be positive (got %s)", c.Daemon.Interval)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log: format must be console or json (got %q)", c.Log.Format)
	}
	return nil
}
