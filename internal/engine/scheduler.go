package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"bookscout/internal/author"
	"bookscout/internal/config"
	"bookscout/internal/outcome"
	"bookscout/internal/record"
)

// Observer is notified once per completed record task, in completion order.
// It runs on the fan-in goroutine, so it must be cheap; it exists for
// progress rendering and result streaming and has no effect on outcomes.
type Observer func(res outcome.Result)

// Scheduler fans one enrichment task out per record and fans results back in
// as they complete. At most `concurrency` author lookups are in flight at
// any instant; the slot is held only while the remote call is running.
type Scheduler struct {
	caller      author.Caller
	concurrency int
	observer    Observer
	log         zerolog.Logger
}

type schedulerOptions struct {
	observer Observer
	log      zerolog.Logger
}

type SchedulerOption func(*schedulerOptions)

func WithObserver(obs Observer) SchedulerOption {
	return func(o *schedulerOptions) {
		o.observer = obs
	}
}

func WithSchedulerLogger(log zerolog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		o.log = log
	}
}

func NewScheduler(caller author.Caller, concurrency int, opts ...SchedulerOption) (*Scheduler, error) {
	if caller == nil {
		return nil, errors.New("author caller is nil")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}
	if concurrency > config.MaxConcurrency {
		return nil, fmt.Errorf("concurrency must be <= %d, got %d", config.MaxConcurrency, concurrency)
	}

	o := &schedulerOptions{log: zerolog.Nop()}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	return &Scheduler{
		caller:      caller,
		concurrency: concurrency,
		observer:    o.observer,
		log:         o.log,
	}, nil
}

// Run enriches all records for one query term and tallies the outcomes.
//
// Semantics:
//   - One task per record; every record yields exactly one tallied outcome
//     in the normal (non-canceled) case, so the tally totals len(records).
//   - A failed lookup never aborts the batch; it is tallied as not_found or
//     error and the remaining records keep going.
//   - Results are consumed in completion order. The tally is commutative,
//     so ordering only affects progress reporting.
//   - On context cancellation, Run stops promptly and returns the partial
//     tally together with ctx.Err().
func (s *Scheduler) Run(ctx context.Context, records []*record.Record, term string) (outcome.Tally, error) {
	tally := outcome.NewTally()

	if s == nil || s.caller == nil {
		return tally, errors.New("scheduler is not initialized (use NewScheduler)")
	}
	if ctx == nil {
		return tally, errors.New("context is nil")
	}
	if len(records) == 0 {
		return tally, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Limit in-flight author lookups.
	sem := make(chan struct{}, s.concurrency)

	type taskResult struct {
		res outcome.Result
		ok  bool // false when the task was canceled before its call ran
	}
	resultsCh := make(chan taskResult)
	pending := 0

	for _, rec := range records {
		if runCtx.Err() != nil {
			break
		}
		pending++
		go func(rec *record.Record) {
			res, ok := s.enrichOne(runCtx, sem, rec, term)
			resultsCh <- taskResult{res: res, ok: ok}
		}(rec)
	}

	// Fan-in: exactly one send per launched task, consumed in completion order.
	for i := 0; i < pending; i++ {
		tr := <-resultsCh
		if !tr.ok {
			continue
		}
		tally.Add(tr.res.Status)
		if tr.res.Status == outcome.StatusError {
			s.log.Debug().Str("term", term).Str("book_id", tr.res.BookID).Str("error", tr.res.Message).Msg("enrichment failed")
		}
		if s.observer != nil {
			s.observer(tr.res)
		}
	}

	if err := ctx.Err(); err != nil {
		return tally, err
	}
	return tally, nil
}

// enrichOne acquires a concurrency slot, performs one author lookup, merges
// the result into the record, and classifies the outcome. The slot is
// released on every path and never held across the enrichment merge.
func (s *Scheduler) enrichOne(ctx context.Context, sem chan struct{}, rec *record.Record, term string) (outcome.Result, bool) {
	bookID, ok := rec.BookID()
	if !ok {
		// No remote call to make; classify without taking a slot.
		return outcome.Result{
			Term:    term,
			Status:  outcome.StatusError,
			Message: "record has no source id",
		}, true
	}

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return outcome.Result{}, false
	}
	details, err := s.caller.Call(ctx, bookID)
	<-sem

	if err != nil {
		return s.classify(term, bookID, err), true
	}

	// The merge happens after the slot is released but before the record is
	// reported as enriched.
	rec.ApplyAuthor(details.Author, term)
	return outcome.Result{
		Term:   term,
		BookID: bookID,
		Status: outcome.StatusOK,
		Author: details.Author,
	}, true
}

// classify folds a failed lookup into a tallied outcome. Anything not
// recognized as the not-found signal becomes a generic error carrying a
// diagnostic label for the logs.
func (s *Scheduler) classify(term, bookID string, err error) outcome.Result {
	if author.IsNotFound(err) {
		return outcome.Result{Term: term, BookID: bookID, Status: outcome.StatusNotFound}
	}
	return outcome.Result{
		Term:    term,
		BookID:  bookID,
		Status:  outcome.StatusError,
		Message: author.Diagnostic(err),
	}
}
