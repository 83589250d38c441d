package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

// Event is the canonical security event model used by internal dispatching and root APIs.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	Principal string            `json:"principal,omitempty"`
	Host      string            `json:"host,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted events. A returned error is reported to the
// dispatcher's failure hook and never reaches the emitting caller.
type Sink interface {
	Send(ctx context.Context, event Event) error
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Send(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Send(context.Context, Event) error { return nil }

// ErrSinkClosed is returned by ChannelSink when the context ends before the
// event could be buffered.
var ErrSinkClosed = errors.New("event sink closed")

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Send(ctx context.Context, event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return errors.Join(ErrSinkClosed, ctx.Err())
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Send(_ context.Context, event Event) error {
	if s == nil || s.writer == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.writer.Write(data)
	return err
}

// MultiSink fans one event out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
