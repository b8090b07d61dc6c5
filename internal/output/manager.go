package output

import (
	"errors"
	"fmt"

	"bookscout/internal/outcome"
)

// Sink is a destination for enrichment results and lifecycle events.
type Sink interface {
	Write(v any) error
	Close() error
}

// Manager fans every enrichment result and lifecycle event out to all
// configured sinks. A sink failure never stops delivery to the others;
// the failures are joined and surfaced to the caller.
type Manager struct {
	sinks []Sink
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

// PublishResult delivers one record outcome to every sink.
func (m *Manager) PublishResult(res outcome.Result) error {
	return m.broadcast(res)
}

// PublishEvent delivers one lifecycle event to every sink.
func (m *Manager) PublishEvent(ev Event) error {
	return m.broadcast(ev)
}

func (m *Manager) broadcast(v any) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(v); err != nil {
			errs = append(errs, fmt.Errorf("write %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors writing to sinks: %w", errors.Join(errs...))
	}
	return nil
}

func (m *Manager) Close() error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sinks: %w", errors.Join(errs...))
	}
	return nil
}
