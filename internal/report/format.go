// Package report assembles node, run and resource facts into line-oriented
// text and writes them out once per report cycle.
package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/yairfalse/nodefacts/pkg/attrs"
	"github.com/yairfalse/nodefacts/pkg/flatten"
	"github.com/yairfalse/nodefacts/pkg/runinfo"
)

// SaveTimeLayout formats the cycle timestamp leading every line.
const SaveTimeLayout = "2006-01-02 15:04:05 UTC"

// Line is a single timestamped fact.
type Line struct {
	Timestamp string
	Subject   string
	Key       string
	Value     string
}

func (l Line) String() string {
	return l.Timestamp + " " + l.Subject + " " + l.Key + "=" + l.Value
}

// NodeFacts renders one line per flattened key/value, keys in index order.
func NodeFacts(savetime, subject string, idx *flatten.Index) string {
	var b strings.Builder
	idx.Each(func(key string, values []string) {
		for _, v := range values {
			writeLine(&b, Line{Timestamp: savetime, Subject: subject, Key: key, Value: v})
		}
	})
	return b.String()
}

// RunFacts renders the run summary. Failed runs get exception and
// backtrace lines after successful=false.
func RunFacts(savetime, subject string, run runinfo.Run) string {
	var b strings.Builder
	add := func(key, value string) {
		writeLine(&b, Line{Timestamp: savetime, Subject: subject, Key: key, Value: value})
	}

	add("start_time", formatTime(run.StartTime))
	add("end_time", formatTime(run.EndTime))
	add("elapsed_time", attrs.FormatFloat(run.ElapsedTime().Seconds()))
	add("total_resources", strconv.Itoa(run.TotalResources))
	add("updated_resources", strconv.Itoa(run.UpdatedResources))
	if run.Success {
		add("successful", "true")
	} else {
		add("successful", "false")
		add("exception", run.Exception)
		add("backtrace", formatBacktrace(run.Backtrace))
	}
	return b.String()
}

// ResourceFacts renders one line per resource: the fixed type, name,
// source_line and updated fields followed by every non-empty extra field
// in its display form.
func ResourceFacts(savetime, subject string, resources []runinfo.Resource) string {
	var b strings.Builder
	for _, r := range resources {
		b.WriteString(savetime)
		b.WriteByte(' ')
		b.WriteString(subject)
		b.WriteString(" type=")
		b.WriteString(r.Type)
		b.WriteString(" name=")
		b.WriteString(r.Name)
		b.WriteString(" source_line=")
		b.WriteString(r.SourceLine)
		b.WriteString(" updated=")
		b.WriteString(strconv.FormatBool(r.Updated))
		for _, p := range r.Extras {
			if IsBlank(p.Value) {
				continue
			}
			b.WriteByte(' ')
			b.WriteString(p.Key)
			b.WriteByte('=')
			b.WriteString(Inspect(p.Value))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// CountLines returns the number of newline-terminated lines in text.
func CountLines(text string) int {
	return strings.Count(text, "\n")
}

func writeLine(b *strings.Builder, l Line) {
	b.WriteString(l.String())
	b.WriteByte('\n')
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(attrs.TimeLayout)
}

func formatBacktrace(frames []string) string {
	if frames == nil {
		return ""
	}
	return Inspect(frames)
}
