package emitter

import (
	"strconv"
	"sync"

	"github.com/yairfalse/nodefacts/internal/report"
)

// ChangeType names what changed for a node between two cycles.
type ChangeType string

const (
	// ChangeKeys indicates the number of flattened keys changed.
	ChangeKeys ChangeType = "keys"
	// ChangeRunStatus indicates the host run flipped between success and failure.
	ChangeRunStatus ChangeType = "run_status"
	// ChangeCycleStatus indicates report writing started or stopped failing.
	ChangeCycleStatus ChangeType = "cycle_status"
)

// Change represents a single change for one node.
type Change struct {
	Node     string
	Type     ChangeType
	Previous string
	Current  string
}

// DiffTracker remembers the last cycle of every node and detects changes.
type DiffTracker struct {
	mu       sync.RWMutex
	previous map[string]report.Result
}

// NewDiffTracker creates a new diff tracker.
func NewDiffTracker() *DiffTracker {
	return &DiffTracker{
		previous: make(map[string]report.Result),
	}
}

// ComputeDiff compares result against the node's previous cycle.
// Returns nil the first time a node is seen.
// Returns empty slice if no changes detected.
func (d *DiffTracker) ComputeDiff(result report.Result) []Change {
	d.mu.RLock()
	defer d.mu.RUnlock()

	prev, ok := d.previous[result.Node]
	if !ok {
		return nil
	}

	changes := make([]Change, 0)
	if prev.Failed() != result.Failed() {
		changes = append(changes, Change{
			Node:     result.Node,
			Type:     ChangeCycleStatus,
			Previous: cycleStatus(prev),
			Current:  cycleStatus(result),
		})
	}

	// A failed cycle carries partial counts; only compare complete ones.
	if prev.Failed() || result.Failed() {
		return changes
	}

	if prev.RunSuccessful != result.RunSuccessful {
		changes = append(changes, Change{
			Node:     result.Node,
			Type:     ChangeRunStatus,
			Previous: runStatus(prev),
			Current:  runStatus(result),
		})
	}
	if prev.Keys != result.Keys {
		changes = append(changes, Change{
			Node:     result.Node,
			Type:     ChangeKeys,
			Previous: strconv.Itoa(prev.Keys),
			Current:  strconv.Itoa(result.Keys),
		})
	}
	return changes
}

// Update stores result as the node's baseline for future comparisons.
func (d *DiffTracker) Update(result report.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.previous[result.Node] = result
}

func cycleStatus(r report.Result) string {
	if r.Failed() {
		return "failed"
	}
	return "ok"
}

func runStatus(r report.Result) string {
	if r.RunSuccessful {
		return "successful"
	}
	return "failed"
}
