// Package runinfo defines the run snapshot handed over by the automation
// host: node identity and attributes, run metadata, and touched resources.
// Snapshots are read-only once built.
package runinfo

import (
	"time"

	"github.com/yairfalse/nodefacts/pkg/attrs"
)

// Snapshot is everything one report cycle consumes.
type Snapshot struct {
	Node      Node
	Run       Run
	Resources []Resource
}

// Node identifies the reporting node and carries its attribute tree.
type Node struct {
	Name       string
	Attributes attrs.Map
}

// Run describes the outcome of one configuration run.
type Run struct {
	StartTime        time.Time
	EndTime          time.Time
	Elapsed          time.Duration
	ElapsedSet       bool // Elapsed was supplied, possibly as zero
	Success          bool
	Exception        string
	Backtrace        []string
	TotalResources   int
	UpdatedResources int
}

// ElapsedTime returns Elapsed when it is set or non-zero, otherwise the
// span between start and end.
func (r Run) ElapsedTime() time.Duration {
	if r.ElapsedSet || r.Elapsed != 0 {
		return r.Elapsed
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Resource is one resource touched by the run. Extras holds the resource's
// remaining named fields, already stripped of hidden ones.
type Resource struct {
	Type       string
	Name       string
	SourceLine string
	Updated    bool
	Extras     attrs.Map
}

// CountUpdated returns how many resources were updated.
func CountUpdated(resources []Resource) int {
	n := 0
	for _, r := range resources {
		if r.Updated {
			n++
		}
	}
	return n
}
