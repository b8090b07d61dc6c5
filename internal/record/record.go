package record

import (
	"fmt"
	"strconv"
)

// Source field names the enrichment step writes or reads.
const (
	FieldID      = "id"
	FieldSummary = "summary"
	FieldAuthor  = "author"
	FieldQuery   = "query"
)

// Record is one search hit. Source is kept as a map so enrichment adds
// fields without disturbing whatever else the search backend returned.
type Record struct {
	ID     string         `json:"_id,omitempty"`
	Score  float64        `json:"_score,omitempty"`
	Source map[string]any `json:"_source"`
}

func New(source map[string]any) *Record {
	if source == nil {
		source = make(map[string]any)
	}
	return &Record{Source: source}
}

// BookID returns the record's source id rendered as a string.
// Search backends return ids as strings or JSON numbers; both are accepted.
func (r *Record) BookID() (string, bool) {
	if r == nil || r.Source == nil {
		return "", false
	}
	v, ok := r.Source[FieldID]
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		// encoding/json decodes numbers into float64.
		if id == float64(int64(id)) {
			return strconv.FormatInt(int64(id), 10), true
		}
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	default:
		return fmt.Sprintf("%v", id), true
	}
}

// Summary returns the source summary text, if present.
func (r *Record) Summary() string {
	if r == nil || r.Source == nil {
		return ""
	}
	s, _ := r.Source[FieldSummary].(string)
	return s
}

// ApplyAuthor merges enrichment data into the record in place, stamping the
// author returned by the remote service and the query term that selected
// the record. Each record is owned by exactly one task, so no locking.
func (r *Record) ApplyAuthor(author, query string) {
	if r.Source == nil {
		r.Source = make(map[string]any)
	}
	r.Source[FieldAuthor] = author
	r.Source[FieldQuery] = query
}

// Enriched reports whether ApplyAuthor has run for this record.
func (r *Record) Enriched() bool {
	if r == nil || r.Source == nil {
		return false
	}
	_, ok := r.Source[FieldAuthor]
	return ok
}
