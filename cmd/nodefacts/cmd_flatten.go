package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/nodefacts/pkg/attrs"
	"github.com/yairfalse/nodefacts/pkg/flatten"
)

var (
	flattenFormat string
	flattenKey    string
)

// flattenCmd represents the flatten command
var flattenCmd = &cobra.Command{
	Use:   "flatten FILE",
	Short: "Print the flattened index of a YAML or JSON tree",
	Long: `Flatten a nested attribute tree into its key index.

Every scalar is recorded under the full underscore-joined path and under
its own last key. Use "-" to read from stdin.`,
	Example: `  nodefacts flatten ohai.json                  # key=value lines
  nodefacts flatten ohai.json --format yaml    # key: [values]
  nodefacts flatten ohai.json --key platform   # values of one key`,
	Args: cobra.ExactArgs(1),
	RunE: runFlatten,
}

func init() {
	rootCmd.AddCommand(flattenCmd)

	flattenCmd.Flags().StringVarP(&flattenFormat, "format", "f", "lines", "Output format: lines, json, yaml")
	flattenCmd.Flags().StringVarP(&flattenKey, "key", "k", "", "Only print the values of this key")
}

func runFlatten(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	tree, err := attrs.Decode(data)
	if err != nil {
		return err
	}

	idx, err := flatten.Flatten(tree)
	if err != nil {
		return err
	}

	return writeIndex(cmd.OutOrStdout(), idx, flattenFormat, flattenKey)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// indexEntry is one key of the index in JSON output.
type indexEntry struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

// writeIndex prints idx in key order. With key set, only that key's values
// are printed, one per line in lines format.
func writeIndex(w io.Writer, idx *flatten.Index, format, key string) error {
	keys := idx.Keys()
	if key != "" {
		if !idx.Has(key) {
			return fmt.Errorf("key %q not found", key)
		}
		keys = []string{key}
	}

	switch format {
	case "lines":
		for _, k := range keys {
			for _, v := range idx.Values(k) {
				if key != "" {
					fmt.Fprintln(w, v)
					continue
				}
				fmt.Fprintf(w, "%s=%s\n", k, v)
			}
		}
		return nil

	case "json":
		entries := make([]indexEntry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, indexEntry{Key: k, Values: idx.Values(k)})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)

	case "yaml":
		// A mapping node keeps index order; a Go map would sort.
		doc := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range keys {
			values := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
			for _, v := range idx.Values(k) {
				values.Content = append(values.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v})
			}
			doc.Content = append(doc.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				values,
			)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()

	default:
		return fmt.Errorf("unknown format %q (want lines, json or yaml)", format)
	}
}
