package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"bookscout/internal/outcome"
)

// ReportSink writes a Markdown summary of the run on Close: overall counts,
// a per-term tally table, and the diagnostic messages of failed lookups.
type ReportSink struct {
	path         string
	file         *os.File
	mu           sync.Mutex
	results      []outcome.Result
	tallies      map[string]outcome.Tally
	termOrder    []string
	exitCode     int
	haveExitCode bool
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}

	return &ReportSink{
		path:    path,
		file:    f,
		tallies: make(map[string]outcome.Tally),
	}, nil
}

func (s *ReportSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch t := v.(type) {
	case outcome.Result:
		s.results = append(s.results, t)
		s.rememberTerm(t.Term)
	case Event:
		if t.Term != "" {
			s.rememberTerm(t.Term)
		}
		if t.Type == "term.finished" && t.Tally != nil {
			s.tallies[t.Term] = t.Tally
		}
		if t.Type == "run.finished" {
			s.exitCode = t.ExitCode
			s.haveExitCode = true
		}
	}
	return nil
}

func (s *ReportSink) rememberTerm(term string) {
	if term == "" {
		return
	}
	for _, t := range s.termOrder {
		if t == term {
			return
		}
	}
	s.termOrder = append(s.termOrder, term)
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeErr := func(err error) error {
		_ = s.file.Close()
		return err
	}

	total := outcome.NewTally()
	for _, r := range s.results {
		total.Add(r.Status)
	}

	// Backfill tallies for terms that never got a term.finished event.
	for _, term := range s.termOrder {
		if _, ok := s.tallies[term]; ok {
			continue
		}
		t := outcome.NewTally()
		for _, r := range s.results {
			if r.Term == term {
				t.Add(r.Status)
			}
		}
		s.tallies[term] = t
	}

	var b strings.Builder
	b.WriteString("# Bookscout Enrichment Report\n\n")

	b.WriteString("## Summary\n\n")
	b.WriteString(fmt.Sprintf("- Query terms: %d\n", len(s.termOrder)))
	b.WriteString(fmt.Sprintf("- Records processed: %d\n", total.Total()))
	b.WriteString(fmt.Sprintf("- Enriched (ok): %d\n", total.Get(outcome.StatusOK)))
	b.WriteString(fmt.Sprintf("- Author not found: %d\n", total.Get(outcome.StatusNotFound)))
	b.WriteString(fmt.Sprintf("- Errors: %d\n", total.Get(outcome.StatusError)))
	if s.haveExitCode {
		b.WriteString(fmt.Sprintf("- Exit code: %d\n", s.exitCode))
	}
	b.WriteString("\n")

	if len(s.termOrder) > 0 {
		b.WriteString("## Per-term tallies\n\n")
		b.WriteString("| Term | Records | ok | not_found | error |\n")
		b.WriteString("|------|---------|----|-----------|-------|\n")
		for _, term := range s.termOrder {
			t := s.tallies[term]
			b.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d |\n",
				term, t.Total(), t.Get(outcome.StatusOK), t.Get(outcome.StatusNotFound), t.Get(outcome.StatusError)))
		}
		b.WriteString("\n")
	}

	var failures []outcome.Result
	for _, r := range s.results {
		if r.Status == outcome.StatusError {
			failures = append(failures, r)
		}
	}
	if len(failures) > 0 {
		sort.SliceStable(failures, func(i, j int) bool {
			if failures[i].Term != failures[j].Term {
				return failures[i].Term < failures[j].Term
			}
			return failures[i].BookID < failures[j].BookID
		})
		b.WriteString("## Failed lookups\n\n")
		for _, r := range failures {
			msg := r.Message
			if msg == "" {
				msg = "unknown error"
			}
			b.WriteString(fmt.Sprintf("- `%s` / book %s: %s\n", r.Term, r.BookID, msg))
		}
		b.WriteString("\n")
	}

	if _, err := s.file.WriteString(b.String()); err != nil {
		return writeErr(fmt.Errorf("failed to write report: %w", err))
	}
	return s.file.Close()
}
