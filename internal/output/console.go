package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"bookscout/internal/outcome"
)

type ConsoleSink struct {
	writer          io.Writer
	format          string // "text", "json", "ndjson"
	mu              sync.Mutex
	results         []outcome.Result // For JSON array output
	allowedStatuses map[outcome.Status]bool
}

func NewConsoleSink(w io.Writer, format string, filterStatuses []string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer: w,
		format: format,
	}

	if len(filterStatuses) > 0 {
		s.allowedStatuses = make(map[outcome.Status]bool)
		for _, st := range filterStatuses {
			// Statuses are lowercase on the wire (ok, not_found, error).
			s.allowedStatuses[outcome.Status(strings.ToLower(st))] = true
		}
	}

	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(v)
}

func (s *ConsoleSink) writeLocked(v any) error {
	// Apply filtering if configured
	if len(s.allowedStatuses) > 0 {
		if r, ok := v.(outcome.Result); ok {
			if !s.allowedStatuses[r.Status] {
				return nil
			}
		}
	}

	switch s.format {
	case "json":
		r, ok := v.(outcome.Result)
		if !ok {
			// Ignore non-result events in JSON console mode.
			return nil
		}
		s.results = append(s.results, r)
		return nil
	case "ndjson":
		encoder := json.NewEncoder(s.writer)
		switch t := v.(type) {
		case Event:
			if err := encoder.Encode(t); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		case outcome.Result:
			e := eventFromResult(t)
			if err := encoder.Encode(e); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		default:
			return nil
		}
	case "text":
		r, ok := v.(outcome.Result)
		if !ok {
			// Ignore events in text mode.
			return nil
		}
		line := fmt.Sprintf("[%s] %s: book %s", strings.ToUpper(string(r.Status)), r.Term, r.BookID)
		if r.Author != "" {
			line += fmt.Sprintf(" - author: %s", r.Author)
		}
		if r.Message != "" {
			line += fmt.Sprintf(" - %s", r.Message)
		}
		if _, err := fmt.Fprintln(s.writer, line); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(s.results); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	}
	if s.format != "text" && s.format != "ndjson" {
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
	return nil
}
