package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"bookscout/internal/author"
	"bookscout/internal/config"
	"bookscout/internal/engine"
	"bookscout/internal/flags"
	"bookscout/internal/logging"
	"bookscout/internal/search"
)

var cfg = config.New()

const enrichHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
	Endpoints and credentials can come from the environment (a .env file in
	the working directory is loaded on startup):

	BOOKSCOUT_SEARCH_URL    base URL of the search backend (see --search-url)
	BOOKSCOUT_SEARCH_TOKEN  optional bearer token for the search backend
	BOOKSCOUT_AUTHOR_URL    author lookup endpoint (see --author-url)
	BOOKSCOUT_REDIS_ADDR    Redis address for the shared lookup cache

  Examples:
    # macOS/Linux
    export BOOKSCOUT_SEARCH_URL="http://localhost:9200"
    bookscout enrich --terms mystery

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich search results for a set of query terms",
	Long: `Fetch book records matching each query term and enrich every record with
author metadata from the remote author service.

Terms are processed strictly in input order; within one term, author lookups
run concurrently up to --concurrency. Each record ends up with exactly one
outcome: ok (author and query stamped onto the record), not_found (the
author service has no entry for the book id), or error.

Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write an aggregate JSON array or NDJSON stream to a file
	- --report: write a Markdown tally report
	- --no-console: suppress the console sink (use with --out/--report)

	NDJSON mode emits one JSON object per line. Objects are lifecycle Events with a
	"type" field (run.started, term.started, record.result, term.finished,
	run.finished); term.finished and run.finished carry the outcome tally.

Exit codes:
	0 = clean run, every record enriched
	1 = some authors not found
	2 = some lookups errored
	3 = fatal error (run did not complete)

Examples:
  # Enrich two terms against a local search backend
  export BOOKSCOUT_SEARCH_URL="http://localhost:9200"
  bookscout enrich --terms mystery,romance

  # Stream machine-readable events to stdout
  bookscout enrich --terms mystery --no-console --out results.ndjson

  # Share author lookups across runs via Redis
  bookscout enrich --terms mystery --redis-addr localhost:6379
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}

		applyEnvDefaults(cfg)

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}

		log := logging.New(cfg.Runtime.Verbose, nil)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Runtime.Timeout)
		defer cancel()

		provider, err := search.NewClient(cfg.Search.URL, cfg.Search.Index,
			search.WithToken(cfg.Search.Token),
			search.WithVerbose(cfg.Runtime.Verbose, nil),
			search.WithTimeout(cfg.Runtime.HTTPTimeout),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create search client: %v\n", err)
			os.Exit(3)
		}

		caller, err := buildCaller(cfg, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create author client: %v\n", err)
			os.Exit(3)
		}

		eng := engine.NewEngine(provider, caller, log)
		os.Exit(eng.Run(ctx, cfg))
	},
}

// applyEnvDefaults fills settings the flags left empty from the environment.
// Flags always win; godotenv has already folded any .env file into the
// process environment by the time this runs.
func applyEnvDefaults(cfg *config.Config) {
	if cfg.Search.URL == "" {
		cfg.Search.URL = os.Getenv("BOOKSCOUT_SEARCH_URL")
	}
	if cfg.Search.Token == "" {
		cfg.Search.Token = os.Getenv("BOOKSCOUT_SEARCH_TOKEN")
	}
	if cfg.Author.URL == "" {
		cfg.Author.URL = os.Getenv("BOOKSCOUT_AUTHOR_URL")
	}
	if cfg.Author.RedisAddr == "" {
		cfg.Author.RedisAddr = os.Getenv("BOOKSCOUT_REDIS_ADDR")
	}
}

// buildCaller constructs the author caller, optionally wrapped in the
// read-through lookup cache.
func buildCaller(cfg *config.Config, log zerolog.Logger) (author.Caller, error) {
	base, err := author.NewClient(cfg.Author.URL,
		author.WithHTTPClient(&http.Client{Timeout: cfg.Runtime.HTTPTimeout}),
		author.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	if !cfg.Author.Cache {
		return base, nil
	}

	var cache author.Cache
	if cfg.Author.RedisAddr != "" {
		rc, err := author.NewRedisCache(&author.RedisConfig{
			Address: cfg.Author.RedisAddr,
			TTL:     cfg.Author.CacheTTL,
		})
		if err != nil {
			return nil, err
		}
		cache = rc
	} else {
		cache = author.NewMemoryCache()
	}
	return author.NewCachedClient(base, cache)
}

func init() {
	rootCmd.AddCommand(enrichCmd)
	enrichCmd.SetHelpTemplate(enrichHelpTemplate)

	// Search
	enrichCmd.Flags().StringSliceVarP(&cfg.Search.Terms, flags.FlagTerms, "t", nil, "Query terms to enrich (repeatable; comma-separated accepted)")
	enrichCmd.Flags().IntVar(&cfg.Search.Size, flags.FlagSize, config.DefaultSize, "Maximum records fetched per term")
	enrichCmd.Flags().StringVar(&cfg.Search.URL, flags.FlagSearchURL, "", "Base URL of the search backend (or BOOKSCOUT_SEARCH_URL)")
	enrichCmd.Flags().StringVar(&cfg.Search.Index, flags.FlagIndex, "books", "Search index holding the book records")

	// Author
	enrichCmd.Flags().StringVar(&cfg.Author.URL, flags.FlagAuthorURL, "", "Author lookup endpoint (or BOOKSCOUT_AUTHOR_URL; default: built-in endpoint)")
	enrichCmd.Flags().BoolVar(&cfg.Author.Cache, flags.FlagCache, false, "Cache author lookups in-process and coalesce duplicate book ids")
	enrichCmd.Flags().StringVar(&cfg.Author.RedisAddr, flags.FlagRedisAddr, "", "Redis address for a shared lookup cache (or BOOKSCOUT_REDIS_ADDR; implies --cache)")
	enrichCmd.Flags().DurationVar(&cfg.Author.CacheTTL, flags.FlagCacheTTL, cfg.Author.CacheTTL, "TTL for Redis-cached lookups (default: 5m)")

	// Output
	enrichCmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, "text", "Console output format: text|json|ndjson (default: text)")
	enrichCmd.Flags().StringSliceVar(&cfg.Output.FilterStatus, flags.FlagFilterStatus, nil, "Filter console output by outcome status (ok, not_found, error). Comma-separated.")
	enrichCmd.Flags().StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write a Markdown tally report to this path")
	enrichCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	enrichCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	enrichCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --out/--report)")

	// Runtime
	enrichCmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, config.DefaultConcurrency, "Concurrent author lookups (default: 5, max: 1000)")
	enrichCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout for the run (default: 10m)")
	enrichCmd.Flags().DurationVar(&cfg.Runtime.HTTPTimeout, flags.FlagHTTPTimeout, cfg.Runtime.HTTPTimeout, "Network timeout per remote call (default: 30s)")
}
