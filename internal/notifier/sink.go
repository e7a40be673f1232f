// Package notifier delivers human-readable notices about completed
// credential mutations to external channels. Delivery is best-effort: a
// failed notification never fails the mutation that triggered it.
package notifier

import (
	"context"

	"go.uber.org/zap"
)

// Event is one mutation notice.
type Event struct {
	// Action is "created", "updated" or "deleted".
	Action string `json:"action"`
	// Key is the namespace/name key of the affected binding.
	Key string `json:"key"`
	// Message is the human-readable notice.
	Message string `json:"message"`
}

// Sink receives mutation notices.
type Sink interface {
	Notify(ctx context.Context, event Event) error
}

// LogSink writes notices to the service log. It is the default sink when no
// webhook is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("notifier")}
}

// Notify implements Sink.
func (s *LogSink) Notify(_ context.Context, event Event) error {
	s.logger.Info(event.Message,
		zap.String("action", event.Action),
		zap.String("key", event.Key),
	)
	return nil
}

// MultiSink fans one notice out to several sinks.
type MultiSink []Sink

// Notify implements Sink. Every sink is attempted; the first error is
// returned.
func (m MultiSink) Notify(ctx context.Context, event Event) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Notify(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
