package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// NopSink discards all events.
type NopSink struct{}

// Emit implements Sink
func (NopSink) Emit(ctx context.Context, event *Event) error { return nil }

// MemorySink keeps events in memory (useful for tests and summaries).
type MemorySink struct {
	mu     sync.Mutex
	events []*Event
}

// Emit implements Sink
func (m *MemorySink) Emit(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the recorded events
func (m *MemorySink) Events() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Event, len(m.events))
	copy(out, m.events)
	return out
}

// OfType returns recorded events with the given type
func (m *MemorySink) OfType(eventType EventType) []*Event {
	var out []*Event
	for _, e := range m.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// MultiSink fans events out to several sinks. Every sink receives the event
// even if an earlier one fails; failures are joined.
type MultiSink []Sink

// Emit implements Sink
func (ms MultiSink) Emit(ctx context.Context, event *Event) error {
	var errs []error
	for _, s := range ms {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// JSONLSink appends one JSON object per line to a log file.
type JSONLSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLSink opens (or creates) path for appending
func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return &JSONLSink{file: f, enc: json.NewEncoder(f)}, nil
}

// Emit implements Sink
func (j *JSONLSink) Emit(ctx context.Context, event *Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(event); err != nil {
		return fmt.Errorf("failed to write event %s: %w", event.ID, err)
	}
	return nil
}

// Close closes the underlying file
func (j *JSONLSink) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Emit sends event to sink, logging instead of failing when the sink errors.
// A nil sink or event is ignored. Event recording never changes run outcomes.
func Emit(ctx context.Context, sink Sink, event *Event) {
	if sink == nil || event == nil {
		return
	}
	if err := sink.Emit(ctx, event); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record %s event: %v\n", event.Type, err)
	}
}

// EmitData builds an event with a constructor and emits it, logging constructor errors.
func EmitData(ctx context.Context, sink Sink, event *Event, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to build event: %v\n", err)
		return
	}
	Emit(ctx, sink, event)
}

// runIDSink stamps a run ID onto events emitted without one.
type runIDSink struct {
	next  Sink
	runID string
}

// WithRunID returns a Sink that sets RunID on events that do not carry one
// before forwarding them to next.
func WithRunID(next Sink, runID string) Sink {
	if next == nil {
		return nil
	}
	return &runIDSink{next: next, runID: runID}
}

func (r *runIDSink) Emit(ctx context.Context, event *Event) error {
	if event != nil && event.RunID == "" {
		event.RunID = r.runID
	}
	return r.next.Emit(ctx, event)
}
