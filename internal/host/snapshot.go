// Package host reads the run snapshot exported by the automation host.
package host

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/nodefacts/internal/filter"
	"github.com/yairfalse/nodefacts/pkg/attrs"
	"github.com/yairfalse/nodefacts/pkg/runinfo"
)

type document struct {
	Node      nodeDocument       `yaml:"node"`
	Run       runDocument        `yaml:"run"`
	Resources []resourceDocument `yaml:"resources"`
}

type nodeDocument struct {
	Name       string    `yaml:"name"`
	Attributes yaml.Node `yaml:"attributes"`
}

type runDocument struct {
	StartTime        yaml.Node `yaml:"start_time"`
	EndTime          yaml.Node `yaml:"end_time"`
	ElapsedTime      *float64  `yaml:"elapsed_time"`
	Success          *bool     `yaml:"success"`
	Exception        string    `yaml:"exception"`
	Backtrace        []string  `yaml:"backtrace"`
	TotalResources   *int      `yaml:"total_resources"`
	UpdatedResources *int      `yaml:"updated_resources"`
}

type resourceDocument struct {
	Type       string    `yaml:"type"`
	Name       string    `yaml:"name"`
	SourceLine string    `yaml:"source_line"`
	Updated    bool      `yaml:"updated"`
	Attributes yaml.Node `yaml:"attributes"`
}

// timeLayouts are tried in order for textual timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// LoadSnapshot reads and parses the snapshot file at path.
func LoadSnapshot(path string, f *filter.Filter) (runinfo.Snapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return runinfo.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := ParseSnapshot(data, f)
	if err != nil {
		return runinfo.Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// ParseSnapshot decodes a YAML or JSON snapshot document. Resource fields
// pass through f; a nil filter keeps everything.
func ParseSnapshot(data []byte, f *filter.Filter) (runinfo.Snapshot, error) {
	if f == nil {
		f = filter.New(nil, nil)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return runinfo.Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}

	tree, err := attrs.FromNode(&doc.Node.Attributes)
	if err != nil {
		return runinfo.Snapshot{}, fmt.Errorf("node attributes: %w", err)
	}

	resources, err := convertResources(doc.Resources, f)
	if err != nil {
		return runinfo.Snapshot{}, err
	}

	run, err := convertRun(doc.Run, resources)
	if err != nil {
		return runinfo.Snapshot{}, err
	}

	return runinfo.Snapshot{
		Node: runinfo.Node{
			Name:       nodeName(doc.Node.Name, tree),
			Attributes: tree,
		},
		Run:       run,
		Resources: f.FilterResources(resources),
	}, nil
}

func convertResources(docs []resourceDocument, f *filter.Filter) ([]runinfo.Resource, error) {
	resources := make([]runinfo.Resource, 0, len(docs))
	for i, d := range docs {
		fields, err := attrs.FromNode(&d.Attributes)
		if err != nil {
			return nil, fmt.Errorf("resource %d (%s[%s]): %w", i, d.Type, d.Name, err)
		}
		resources = append(resources, runinfo.Resource{
			Type:       d.Type,
			Name:       d.Name,
			SourceLine: d.SourceLine,
			Updated:    d.Updated,
			Extras:     f.Extras(fields),
		})
	}
	return resources, nil
}

// convertRun fills in counts from the full resource list when the host
// leaves them out. A missing success flag means success.
func convertRun(d runDocument, resources []runinfo.Resource) (runinfo.Run, error) {
	start, err := parseTime(&d.StartTime)
	if err != nil {
		return runinfo.Run{}, fmt.Errorf("run start_time: %w", err)
	}
	end, err := parseTime(&d.EndTime)
	if err != nil {
		return runinfo.Run{}, fmt.Errorf("run end_time: %w", err)
	}

	run := runinfo.Run{
		StartTime:        start,
		EndTime:          end,
		Success:          true,
		Exception:        d.Exception,
		Backtrace:        d.Backtrace,
		TotalResources:   len(resources),
		UpdatedResources: runinfo.CountUpdated(resources),
	}
	if d.Success != nil {
		run.Success = *d.Success
	}
	if d.ElapsedTime != nil {
		run.Elapsed = time.Duration(*d.ElapsedTime * float64(time.Second))
		run.ElapsedSet = true
	}
	if d.TotalResources != nil {
		run.TotalResources = *d.TotalResources
	}
	if d.UpdatedResources != nil {
		run.UpdatedResources = *d.UpdatedResources
	}
	return run, nil
}

// parseTime accepts textual timestamps or Unix seconds.
func parseTime(node *yaml.Node) (time.Time, error) {
	if node.Kind == 0 || node.ShortTag() == "!!null" {
		return time.Time{}, nil
	}
	if node.Kind != yaml.ScalarNode {
		return time.Time{}, fmt.Errorf("line %d: expected a timestamp", node.Line)
	}

	value := strings.TrimSpace(node.Value)
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9)), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("line %d: unrecognised timestamp %q", node.Line, value)
}

// nodeName falls back to the fqdn or hostname attribute.
func nodeName(name string, tree attrs.Map) string {
	if name != "" {
		return name
	}
	for _, key := range []string{"fqdn", "hostname"} {
		if v, ok := tree.Get(key); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
