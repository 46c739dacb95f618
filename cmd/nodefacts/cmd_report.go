package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/nodefacts/internal/config"
	"github.com/yairfalse/nodefacts/internal/telemetry"
)

var (
	reportSnapshot string
	reportPath     string
	reportKeep     int
	reportNode     string
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write node, run and resource facts once",
	Long: `Read the run snapshot exported by the host and write one report:

- node.data: every flattened node attribute as key=value
- run.data: start, end, elapsed time, resource counts and outcome
- resource.data: one line per touched resource

Earlier versions of each file are kept as timestamped backups.`,
	Example: `  nodefacts report                                  # Use config defaults
  nodefacts report --snapshot /tmp/run.json         # Explicit snapshot
  nodefacts report --path /srv/facts --keep 3       # Custom output
  nodefacts report --node web01.example.com         # Override subject`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportSnapshot, "snapshot", "s", "", "Run snapshot file (YAML or JSON)")
	reportCmd.Flags().StringVarP(&reportPath, "path", "p", "", "Report directory")
	reportCmd.Flags().IntVarP(&reportKeep, "keep", "k", -1, "Backups kept per report file")
	reportCmd.Flags().StringVarP(&reportNode, "node", "n", "", "Subject written into every line")
}

func runReport(cmd *cobra.Command, _ []string) error {
	applyReportFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// One-shot runs only push to OTLP; there is nothing to scrape.
	otelCfg := cfg.OTEL
	otelCfg.Metrics.Prometheus = false
	provider, err := telemetry.NewProvider(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	a, err := newApp(cfg, provider)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.cycle(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote facts for %s to %s\n", res.Node, res.Path)
	fmt.Fprintf(out, "  keys:      %d\n", res.Keys)
	fmt.Fprintf(out, "  node:      %d lines\n", res.NodeLines)
	fmt.Fprintf(out, "  run:       %d lines\n", res.RunLines)
	fmt.Fprintf(out, "  resources: %d lines\n", res.ResourceLines)
	return nil
}

// applyReportFlags overrides config values with explicitly set flags.
func applyReportFlags(c *config.Config) {
	if reportSnapshot != "" {
		c.Snapshot.Path = reportSnapshot
	}
	if reportPath != "" {
		c.Report.Path = reportPath
	}
	if reportKeep >= 0 {
		c.Report.Keep = reportKeep
	}
	if reportNode != "" {
		c.Report.NodeName = reportNode
	}
}
