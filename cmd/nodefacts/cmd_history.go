package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/nodefacts/internal/history"
)

var (
	historyNode  string
	historyLimit int
	historyNodes bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded report cycles",
	Long: `List report cycles recorded in the history database, newest first.

History is recorded when [history] enabled = true in the config.`,
	Example: `  nodefacts history                   # Last 20 cycles
  nodefacts history --node web01 -n 5  # Last 5 cycles of one node
  nodefacts history --nodes           # Per-node summary`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyNode, "node", "", "Only show cycles of this node")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum cycles to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyNodes, "nodes", false, "Show per-node summary instead")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	store, err := history.Open(cfg.History.Path, history.WithReadOnly())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()

	if historyNodes {
		fmt.Fprintln(tw, "NODE\tCYCLES\tFAILURES\tKEYS\tLAST SAVED")
		for _, n := range store.Nodes() {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", n.Node, n.Cycles, n.Failures, n.Keys, formatTime(n.LastSaveTime))
		}
		return nil
	}

	entries, err := store.List(historyNode, historyLimit)
	if err != nil {
		return err
	}

	fmt.Fprintln(tw, "REV\tNODE\tSAVED\tKEYS\tRESOURCES\tRUN\tRESULT")
	for _, e := range entries {
		result := "ok"
		if e.Failed() {
			result = e.Error
		}
		run := "successful"
		if !e.RunSuccessful {
			run = "failed"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			e.Revision, e.Node, formatTime(e.SaveTime), e.Keys, e.ResourceLines, run, result)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
