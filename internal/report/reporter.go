package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/nodefacts/pkg/flatten"
	"github.com/yairfalse/nodefacts/pkg/runinfo"
)

// Report file names inside the report directory.
const (
	NodeFile     = "node.data"
	RunFile      = "run.data"
	ResourceFile = "resource.data"
)

// Defaults for Options.
const (
	DefaultPath = "/var/chef/splunk"
	DefaultKeep = 10

	DirMode  os.FileMode = 0755
	FileMode os.FileMode = 0644
)

// FileWriter persists report files.
type FileWriter interface {
	// EnsureDir creates dir and any missing parents.
	EnsureDir(dir string, perm os.FileMode) error

	// Write replaces path with content, keeping up to keep prior versions.
	Write(path, content string, perm os.FileMode, keep int) error
}

// Sink receives the summary of every finished cycle.
type Sink interface {
	Emit(ctx context.Context, result Result) error
}

// Options configures a Reporter.
type Options struct {
	Path     string // report directory
	Keep     int    // backups kept per report file; 0 means DefaultKeep, negative disables
	NodeName string // overrides the snapshot's node name when set
}

// Result summarises one report cycle.
type Result struct {
	ID            string
	Node          string
	Path          string
	SaveTime      time.Time
	Keys          int
	NodeLines     int
	RunLines      int
	ResourceLines int
	RunSuccessful bool
	Duration      time.Duration
	Files         []string
	Err           error
}

// Failed reports whether the cycle itself failed. A failed run that was
// reported successfully is not a failed cycle.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Reporter runs report cycles.
type Reporter struct {
	opts   Options
	writer FileWriter
	sink   Sink
	now    func() time.Time
	tracer trace.Tracer
}

// Option customises a Reporter.
type Option func(*Reporter)

// WithSink sets the sink notified after every cycle.
func WithSink(s Sink) Option {
	return func(r *Reporter) { r.sink = s }
}

// WithTracer sets the tracer for cycle spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Reporter) { r.tracer = t }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// New creates a Reporter. An empty Path falls back to DefaultPath and a
// zero Keep to DefaultKeep.
func New(opts Options, w FileWriter, options ...Option) *Reporter {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.Keep == 0 {
		opts.Keep = DefaultKeep
	}
	r := &Reporter{
		opts:   opts,
		writer: w,
		now:    time.Now,
		tracer: otel.Tracer("github.com/yairfalse/nodefacts/report"),
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Path returns the report directory.
func (r *Reporter) Path() string {
	return r.opts.Path
}

// Report runs one cycle: create the report directory, flatten the node
// attributes, then write node, run and resource facts in that order.
// The first error aborts the cycle and is returned; files already written
// stay in place.
func (r *Reporter) Report(ctx context.Context, snap runinfo.Snapshot) (Result, error) {
	start := r.now()
	res := Result{
		ID:            uuid.NewString(),
		Node:          r.subject(snap),
		Path:          r.opts.Path,
		RunSuccessful: snap.Run.Success,
	}

	ctx, span := r.tracer.Start(ctx, "report.cycle", trace.WithAttributes(
		attribute.String("node", res.Node),
		attribute.String("path", res.Path),
	))
	defer span.End()

	log.Info().Ctx(ctx).
		Str("node", res.Node).
		Str("path", res.Path).
		Msg("creating report")

	err := r.run(snap, &res)
	res.Duration = r.now().Sub(start)

	if err != nil {
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("keys", res.Keys),
			attribute.Int("node_lines", res.NodeLines),
			attribute.Int("resource_lines", res.ResourceLines),
		)
		log.Debug().Ctx(ctx).
			Str("node", res.Node).
			Int("keys", res.Keys).
			Int("resources", res.ResourceLines).
			Bool("run_successful", res.RunSuccessful).
			Dur("duration", res.Duration).
			Msg("finished report")
	}

	r.emit(ctx, res)
	return res, err
}

func (r *Reporter) run(snap runinfo.Snapshot, res *Result) error {
	if err := r.writer.EnsureDir(r.opts.Path, DirMode); err != nil {
		return fmt.Errorf("create report dir %s: %w", r.opts.Path, err)
	}

	res.SaveTime = r.now().UTC()
	savetime := res.SaveTime.Format(SaveTimeLayout)

	idx, err := flatten.Flatten(snap.Node.Attributes)
	if err != nil {
		return fmt.Errorf("flatten node attributes: %w", err)
	}
	res.Keys = idx.Len()

	node := NodeFacts(savetime, res.Node, idx)
	if err := r.write(NodeFile, node, res); err != nil {
		return err
	}
	res.NodeLines = CountLines(node)

	run := RunFacts(savetime, res.Node, snap.Run)
	if err := r.write(RunFile, run, res); err != nil {
		return err
	}
	res.RunLines = CountLines(run)

	resources := ResourceFacts(savetime, res.Node, snap.Resources)
	if err := r.write(ResourceFile, resources, res); err != nil {
		return err
	}
	res.ResourceLines = CountLines(resources)

	return nil
}

func (r *Reporter) write(name, content string, res *Result) error {
	path := filepath.Join(r.opts.Path, name)
	if err := r.writer.Write(path, content, FileMode, r.opts.Keep); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	res.Files = append(res.Files, path)
	log.Debug().Str("file", path).Int("bytes", len(content)).Msg("report file written")
	return nil
}

func (r *Reporter) emit(ctx context.Context, res Result) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Emit(ctx, res); err != nil {
		log.Error().Ctx(ctx).Err(err).Str("cycle", res.ID).Msg("emit report result failed")
	}
}

func (r *Reporter) subject(snap runinfo.Snapshot) string {
	if r.opts.NodeName != "" {
		return r.opts.NodeName
	}
	return snap.Node.Name
}
