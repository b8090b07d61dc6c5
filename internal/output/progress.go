package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// ProgressMeter renders a single-line done/total counter on stderr while a
// term's records are being enriched. It is purely cosmetic: outcome
// semantics never depend on it, and it is skipped in verbose mode where
// per-outcome diagnostics are logged instead.
type ProgressMeter struct {
	writer io.Writer
	mu     sync.Mutex
	label  string
	total  int
	done   int
	active bool
}

func NewProgressMeter(w io.Writer) *ProgressMeter {
	if w == nil {
		w = os.Stderr
	}
	return &ProgressMeter{writer: w}
}

// Start begins a new counter for one query term.
func (p *ProgressMeter) Start(label string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = label
	p.total = total
	p.done = 0
	p.active = total > 0
	p.renderLocked()
}

// Tick marks one more record as completed.
func (p *ProgressMeter) Tick() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	p.done++
	p.renderLocked()
}

// Finish ends the current line so subsequent output starts clean.
func (p *ProgressMeter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	p.active = false
	_, _ = fmt.Fprintln(p.writer)
}

func (p *ProgressMeter) renderLocked() {
	if !p.active {
		return
	}
	bold := color.New(color.Bold)
	_, _ = fmt.Fprintf(p.writer, "\rEnriching %s: %d/%d", bold.Sprint(p.label), p.done, p.total)
}
