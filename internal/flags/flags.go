package flags

// Package flags defines canonical CLI flag names shared across the CLI and engine.
// Keeping these as constants helps avoid drift between Cobra flag wiring and other
// code paths that need to reference flags.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringSliceVar(&cfg.Search.Terms, flags.FlagTerms, nil, "...")
//	arg := "--" + flags.FlagTerms
const (
	// Search
	FlagTerms     = "terms"
	FlagSize      = "size"
	FlagSearchURL = "search-url"
	FlagIndex     = "index"

	// Author
	FlagAuthorURL = "author-url"
	FlagCache     = "cache"
	FlagRedisAddr = "redis-addr"
	FlagCacheTTL  = "cache-ttl"

	// Output
	FlagConsoleFormat = "console-format"
	FlagFilterStatus  = "filter-status"
	FlagReport        = "report"
	FlagOut           = "out"
	FlagOutFormat     = "out-format"
	FlagNoConsole     = "no-console"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
	FlagHTTPTimeout = "http-timeout"
)
