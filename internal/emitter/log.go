package emitter

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/nodefacts/internal/report"
)

// LogEmitter writes one structured event per cycle.
type LogEmitter struct {
	logger *zerolog.Logger
}

// NewLogEmitter creates a LogEmitter. A nil logger uses the global one.
func NewLogEmitter(logger *zerolog.Logger) *LogEmitter {
	if logger == nil {
		logger = &log.Logger
	}
	return &LogEmitter{logger: logger}
}

// Emit logs the cycle summary. Failed cycles log at error level.
func (e *LogEmitter) Emit(ctx context.Context, result report.Result) error {
	event := e.logger.Info()
	if result.Failed() {
		event = e.logger.Error().Err(result.Err)
	}

	event.Ctx(ctx).
		Str("cycle_id", result.ID).
		Str("node", result.Node).
		Str("path", result.Path).
		Int("keys", result.Keys).
		Int("node_lines", result.NodeLines).
		Int("run_lines", result.RunLines).
		Int("resource_lines", result.ResourceLines).
		Bool("run_successful", result.RunSuccessful).
		Dur("duration", result.Duration).
		Msg("report cycle")

	return nil
}

// Close is a no-op for the log emitter.
func (e *LogEmitter) Close() error {
	return nil
}
