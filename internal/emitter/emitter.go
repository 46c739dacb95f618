// Package emitter fans report cycle summaries out to logging and metrics
// backends.
package emitter

import (
	"context"

	"github.com/yairfalse/nodefacts/internal/report"
)

// Emitter outputs report cycle summaries to a backend.
type Emitter interface {
	// Emit sends one cycle summary to the backend.
	Emit(ctx context.Context, result report.Result) error

	// Close cleans up resources.
	Close() error
}

// MultiEmitter fans out to multiple emitters.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates an emitter that sends to multiple backends.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

// Add appends an emitter to the fan-out.
func (m *MultiEmitter) Add(e Emitter) {
	m.emitters = append(m.emitters, e)
}

// Emit sends to all emitters, returns first error.
func (m *MultiEmitter) Emit(ctx context.Context, result report.Result) error {
	for _, e := range m.emitters {
		if err := e.Emit(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all emitters.
func (m *MultiEmitter) Close() error {
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			return err
		}
	}
	return nil
}
