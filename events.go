package goShield

import (
	"log/slog"

	"github.com/MrEthical07/goShield/internal/events"
)

// newEventDispatcher wires sink behind the configured dispatcher. It returns
// nil when events are disabled, and a nil dispatcher drops every event.
// Sink failures are logged and counted, never returned to callers.
func newEventDispatcher(cfg EventsConfig, sink EventSink, logger *slog.Logger, metrics *Metrics) *events.Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	return events.NewDispatcher(events.Config{
		Async:      cfg.Async,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink, func(event Event, err error) {
		metrics.Inc(MetricEventSendFailure)
		logger.Warn("event sink failed", "type", event.Type, "principal", event.Principal, "error", err)
	})
}
