package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"bookscout/internal/outcome"
	"bookscout/internal/record"
	"bookscout/internal/search"
)

// Batch is the result of enriching one query term: the (mutated) records in
// provider order and the outcome tally for the term.
type Batch struct {
	Term    string
	Records []*record.Record
	Tally   outcome.Tally
}

// Runner drives the scheduler once per query term, strictly in input order.
// One term's batch fully completes (including its enrichment merges) before
// the next term's records are fetched.
type Runner struct {
	provider  search.Provider
	scheduler *Scheduler
	size      int

	onTermStart func(term string, records int)
	onTermDone  func(term string, tally outcome.Tally)
	log         zerolog.Logger
}

type runnerOptions struct {
	onTermStart func(term string, records int)
	onTermDone  func(term string, tally outcome.Tally)
	log         zerolog.Logger
}

type RunnerOption func(*runnerOptions)

// WithTermHooks registers callbacks fired when a term's batch begins and
// ends. Either may be nil. They exist for output and progress rendering.
func WithTermHooks(onStart func(term string, records int), onDone func(term string, tally outcome.Tally)) RunnerOption {
	return func(o *runnerOptions) {
		o.onTermStart = onStart
		o.onTermDone = onDone
	}
}

func WithRunnerLogger(log zerolog.Logger) RunnerOption {
	return func(o *runnerOptions) {
		o.log = log
	}
}

func NewRunner(provider search.Provider, scheduler *Scheduler, size int, opts ...RunnerOption) (*Runner, error) {
	if provider == nil {
		return nil, errors.New("search provider is nil")
	}
	if scheduler == nil {
		return nil, errors.New("scheduler is nil")
	}
	if size <= 0 {
		return nil, fmt.Errorf("size must be >= 1, got %d", size)
	}

	o := &runnerOptions{log: zerolog.Nop()}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	return &Runner{
		provider:    provider,
		scheduler:   scheduler,
		size:        size,
		onTermStart: o.onTermStart,
		onTermDone:  o.onTermDone,
		log:         o.log,
	}, nil
}

// RunAll processes every query term in input order and returns one Batch per
// term, index-aligned with terms. A search backend failure is fatal and
// aborts the run; per-record enrichment failures are not (they are tallied).
func (r *Runner) RunAll(ctx context.Context, terms []string) ([]Batch, error) {
	if r == nil || r.provider == nil || r.scheduler == nil {
		return nil, errors.New("runner is not initialized (use NewRunner)")
	}
	if ctx == nil {
		return nil, errors.New("context is nil")
	}

	batches := make([]Batch, 0, len(terms))
	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return batches, err
		}

		records, err := r.provider.Search(ctx, term, r.size)
		if err != nil {
			return batches, fmt.Errorf("search %q: %w", term, err)
		}
		r.log.Debug().Str("term", term).Int("records", len(records)).Msg("records fetched")

		if r.onTermStart != nil {
			r.onTermStart(term, len(records))
		}

		tally, err := r.scheduler.Run(ctx, records, term)
		if r.onTermDone != nil {
			r.onTermDone(term, tally)
		}
		r.log.Info().
			Str("term", term).
			Int("ok", tally.Get(outcome.StatusOK)).
			Int("not_found", tally.Get(outcome.StatusNotFound)).
			Int("error", tally.Get(outcome.StatusError)).
			Msg("term enriched")

		batches = append(batches, Batch{Term: term, Records: records, Tally: tally})
		if err != nil {
			return batches, err
		}
	}
	return batches, nil
}
