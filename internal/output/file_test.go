package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bookscout/internal/outcome"
)

func TestFileSink_JSONAggregate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")

	sink, err := NewFileSink(path, "")
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	for _, r := range sampleResults() {
		if err := sink.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	// Lifecycle events are ignored in aggregate mode.
	if err := sink.Write(Event{Type: "run.finished", ExitCode: 2}); err != nil {
		t.Fatalf("Write event: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var got []outcome.Result
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
}

func TestFileSink_NDJSONStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.ndjson")

	sink, err := NewFileSink(path, "")
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if err := sink.Write(Event{Type: "run.started", Terms: 1}); err != nil {
		t.Fatalf("Write event: %v", err)
	}
	if err := sink.Write(sampleResults()[0]); err != nil {
		t.Fatalf("Write result: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, line := range lines {
		var ev struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad line %q: %v", line, err)
		}
		if ev.Type == "" {
			t.Fatalf("line without type: %q", line)
		}
	}
}

func TestNewFileSink_FormatInference(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewFileSink(filepath.Join(dir, "r.jsonl"), ""); err != nil {
		t.Errorf(".jsonl must infer ndjson: %v", err)
	}
	if _, err := NewFileSink(filepath.Join(dir, "r.csv"), ""); err == nil {
		t.Error("expected error for unknown extension")
	}
	if _, err := NewFileSink(filepath.Join(dir, "r.json"), "yaml"); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := NewFileSink("", "json"); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestNewFileSink_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "results.json")

	sink, err := NewFileSink(path, "")
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
}
