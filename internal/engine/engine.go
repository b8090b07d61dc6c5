package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"bookscout/internal/author"
	"bookscout/internal/config"
	"bookscout/internal/outcome"
	"bookscout/internal/output"
	"bookscout/internal/search"
)

func exitCodeForRun(fatal bool, total outcome.Tally) int {
	// Exit code contract:
	// 0 = clean run, every record enriched
	// 1 = some authors not found
	// 2 = some lookups errored
	// 3 = fatal error (run did not complete)
	if fatal {
		return 3
	}
	if total.Get(outcome.StatusError) > 0 {
		return 2
	}
	if total.Get(outcome.StatusNotFound) > 0 {
		return 1
	}
	return 0
}

func setupOutputManager(cfg *config.Config) (*output.Manager, error) {
	outMgr := output.NewManager()

	// Console Sink
	if !cfg.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(nil, cfg.Output.ConsoleFormat, cfg.Output.FilterStatus)); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// File Sink
	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Report Sink
	if cfg.Output.Report != "" {
		rs, err := output.NewReportSink(cfg.Output.Report)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(rs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

// Engine wires the search provider, the author caller, and the output sinks
// into one enrichment run.
type Engine struct {
	provider search.Provider
	caller   author.Caller
	log      zerolog.Logger
}

func NewEngine(provider search.Provider, caller author.Caller, log zerolog.Logger) *Engine {
	return &Engine{
		provider: provider,
		caller:   caller,
		log:      log,
	}
}

// Run executes the whole enrichment run described by cfg and returns the
// process exit code.
func (e *Engine) Run(ctx context.Context, cfg *config.Config) int {
	if e == nil || e.provider == nil || e.caller == nil {
		fmt.Fprintln(os.Stderr, "Error: engine is not initialized")
		return exitCodeForRun(true, outcome.NewTally())
	}

	outMgr, err := setupOutputManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output sinks: %v\n", err)
		return exitCodeForRun(true, outcome.NewTally())
	}
	defer outMgr.Close()

	// The progress meter is shown only where a human is watching: text
	// console, non-verbose. Verbose runs log per-outcome diagnostics instead.
	var progress *output.ProgressMeter
	if !cfg.Output.NoConsole && cfg.Output.ConsoleFormat == "text" && !cfg.Runtime.Verbose {
		progress = output.NewProgressMeter(os.Stderr)
	}

	scheduler, err := NewScheduler(e.caller, cfg.Runtime.Concurrency,
		WithSchedulerLogger(e.log),
		WithObserver(func(res outcome.Result) {
			_ = outMgr.PublishResult(res)
			if progress != nil {
				progress.Tick()
			}
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating scheduler: %v\n", err)
		return exitCodeForRun(true, outcome.NewTally())
	}

	runner, err := NewRunner(e.provider, scheduler, cfg.Search.Size,
		WithRunnerLogger(e.log),
		WithTermHooks(
			func(term string, records int) {
				_ = outMgr.PublishEvent(output.Event{Type: "term.started", Term: term, Records: records})
				if progress != nil {
					progress.Start(term, records)
				}
			},
			func(term string, tally outcome.Tally) {
				if progress != nil {
					progress.Finish()
				}
				_ = outMgr.PublishEvent(output.Event{Type: "term.finished", Term: term, Tally: tally})
			},
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating runner: %v\n", err)
		return exitCodeForRun(true, outcome.NewTally())
	}

	_ = outMgr.PublishEvent(output.Event{Type: "run.started", Terms: len(cfg.Search.Terms)})

	batches, runErr := runner.RunAll(ctx, cfg.Search.Terms)
	if runErr != nil {
		e.log.Error().Err(runErr).Msg("run aborted")
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
	}

	total := outcome.NewTally()
	for _, b := range batches {
		for status, n := range b.Tally {
			total[status] += n
		}
	}

	code := exitCodeForRun(runErr != nil, total)
	_ = outMgr.PublishEvent(output.Event{Type: "run.finished", Records: total.Total(), Tally: total, ExitCode: code})
	return code
}
