package output

import "bookscout/internal/outcome"

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode, sinks emit Events (one JSON object per line), including:
// - run.started
// - term.started
// - record.result
// - term.finished
// - run.finished
//
// JSON mode remains an aggregate of outcome.Result values.
type Event struct {
	Type string `json:"type"`
	Term string `json:"term,omitempty"`
	*outcome.Result
	Terms    int           `json:"terms,omitempty"`
	Records  int           `json:"records,omitempty"`
	Tally    outcome.Tally `json:"tally,omitempty"`
	ExitCode int           `json:"exit_code,omitempty"`
}

func eventFromResult(r outcome.Result) Event {
	return Event{Type: "record.result", Term: r.Term, Result: &r}
}
