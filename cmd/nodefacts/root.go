package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/nodefacts/internal/config"
	"github.com/yairfalse/nodefacts/internal/telemetry"
)

var (
	version = "0.1.0"

	configPath string
	logLevel   string
	debug      bool

	// cfg is loaded before every subcommand runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "nodefacts",
		Short: "Node fact reporter",
		Long: `nodefacts - node fact reporter

nodefacts turns a node's attribute tree and the outcome of its last
configuration run into flat key=value fact files that a log forwarder
can pick up.

Each report cycle writes node.data, run.data and resource.data into the
report directory, keeping a bounded number of backups of each.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`nodefacts {{.Version}}
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// setup loads the configuration and installs the global logger.
func setup(_ *cobra.Command, _ []string) error {
	loaded, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if debug {
		loaded.Log.Level = "debug"
	}

	if err := telemetry.SetupLogging(loaded.Log.Level, loaded.Log.Format); err != nil {
		return err
	}

	cfg = loaded
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}

	loaded, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return loaded, nil
}
