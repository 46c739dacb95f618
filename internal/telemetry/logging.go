package telemetry

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

// Run implements zerolog.Hook.
func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	// Skip if no context
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// NewLogger creates a logger writing console or JSON lines to w.
func NewLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level: %w", err)
	}

	switch format {
	case "console", "":
		w = zerolog.ConsoleWriter{Out: w}
	case "json":
	default:
		return zerolog.Logger{}, fmt.Errorf("unknown log format %q", format)
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger().
		Hook(OTELHook{}), nil
}

// SetupLogging replaces the global logger with one writing to stderr.
func SetupLogging(level, format string) error {
	logger, err := NewLogger(os.Stderr, level, format)
	if err != nil {
		return err
	}
	log.Logger = logger
	return nil
}
