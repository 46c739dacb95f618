// Package filter decides which resources and resource fields reach the
// resource report.
package filter

import (
	"strings"

	"github.com/yairfalse/nodefacts/pkg/attrs"
	"github.com/yairfalse/nodefacts/pkg/runinfo"
)

// Filter controls which resource types are reported and which resource
// fields are hidden from the extras.
type Filter struct {
	excludeTypes map[string]bool
	hidden       map[string]bool
}

// New creates a new Filter from the provided configuration.
func New(excludeTypes, hiddenFields []string) *Filter {
	excludeMap := make(map[string]bool)
	for _, t := range excludeTypes {
		excludeMap[t] = true
	}

	hiddenMap := make(map[string]bool)
	for _, f := range hiddenFields {
		hiddenMap[FieldName(f)] = true
	}

	return &Filter{
		excludeTypes: excludeMap,
		hidden:       hiddenMap,
	}
}

// ShouldReportType returns true if resources of the given type are reported.
func (f *Filter) ShouldReportType(typ string) bool {
	return !f.excludeTypes[typ]
}

// IsHidden returns true if the named field never appears in extras.
func (f *Filter) IsHidden(field string) bool {
	return f.hidden[FieldName(field)]
}

// Extras returns the visible fields, keeping their order. Field names lose
// a leading "@" on the way.
func (f *Filter) Extras(fields attrs.Map) attrs.Map {
	out := make(attrs.Map, 0, len(fields))
	for _, p := range fields {
		name := FieldName(p.Key)
		if name == "" || f.IsHidden(name) {
			continue
		}
		out = append(out, attrs.Pair{Key: name, Value: p.Value})
	}
	return out
}

// FilterResources returns only resources of reported types.
func (f *Filter) FilterResources(resources []runinfo.Resource) []runinfo.Resource {
	if len(f.excludeTypes) == 0 {
		return resources
	}

	filtered := make([]runinfo.Resource, 0, len(resources))
	for _, r := range resources {
		if f.ShouldReportType(r.Type) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// FieldName normalises a field name as exported by the host.
func FieldName(name string) string {
	return strings.TrimPrefix(name, "@")
}
