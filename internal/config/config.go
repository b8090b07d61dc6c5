package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Recognized tunables for the enrichment pipeline.
const (
	// DefaultConcurrency is how many author lookups run in flight at once
	// unless --concurrency says otherwise.
	DefaultConcurrency = 5

	// MaxConcurrency is the upper bound on --concurrency.
	MaxConcurrency = 1000

	// DefaultSize is how many records are fetched per query term.
	DefaultSize = 10

	// DefaultAuthorEndpoint is the author lookup API used when neither
	// --author-url nor BOOKSCOUT_AUTHOR_URL is set.
	DefaultAuthorEndpoint = "https://ie4djxzt8j.execute-api.eu-west-1.amazonaws.com/coding"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields that affect
	// enrichment behavior, keep the CLI flags in internal/cli/enrich.go in sync.
	Search  Search
	Author  Author
	Output  Output
	Runtime Runtime
}

type Search struct {
	// URL is the base URL of the search backend (see --search-url;
	// falls back to BOOKSCOUT_SEARCH_URL).
	URL string

	// Index is the search index holding the book records (see --index).
	Index string

	// Token optionally authenticates to the search backend
	// (BOOKSCOUT_SEARCH_TOKEN). The author service itself takes no auth.
	Token string

	// Terms are the query terms to enrich, processed in input order
	// (see --terms; repeatable and/or comma-separated).
	Terms []string

	// Size limits how many records are fetched per term (see --size).
	Size int
}

type Author struct {
	// URL is the author lookup endpoint (see --author-url;
	// falls back to BOOKSCOUT_AUTHOR_URL, then DefaultAuthorEndpoint).
	URL string

	// Cache enables the read-through author lookup cache (see --cache).
	Cache bool

	// RedisAddr selects a shared Redis cache backend instead of the
	// in-process one (see --redis-addr; falls back to BOOKSCOUT_REDIS_ADDR).
	// Implies Cache.
	RedisAddr string

	// CacheTTL bounds cached lookups in the Redis backend (see --cache-ttl).
	CacheTTL time.Duration
}

type Output struct {
	// ConsoleFormat controls the console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string

	// FilterStatus filters console output by outcome status (see --filter-status).
	// Allowed values: ok, not_found, error.
	FilterStatus []string

	// Report writes a Markdown tally report to this path (see --report).
	Report string

	// Out writes structured output to this path (see --out).
	Out string

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, inferred from the extension.
	OutFormat string

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool
}

type Runtime struct {
	// Concurrency bounds how many author lookups are in flight at once
	// (see --concurrency). Must be in [1, MaxConcurrency].
	Concurrency int

	// Timeout is the global timeout for the whole run (see --timeout).
	Timeout time.Duration

	// HTTPTimeout is the per-request network timeout applied to the HTTP
	// transport; the pipeline itself enforces none (see --http-timeout).
	HTTPTimeout time.Duration

	// Verbose switches the progress meter off and outcome diagnostics on.
	Verbose bool
}

func New() *Config {
	return &Config{
		Search: Search{
			Index: "books",
			Size:  DefaultSize,
		},
		Author: Author{
			URL:      DefaultAuthorEndpoint,
			CacheTTL: 5 * time.Minute,
		},
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Concurrency: DefaultConcurrency,
			Timeout:     10 * time.Minute,
			HTTPTimeout: 30 * time.Second,
		},
	}
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Search.Terms = splitCommaList(c.Search.Terms)
	c.Output.FilterStatus = splitCommaList(c.Output.FilterStatus)

	// Search validation
	if len(c.Search.Terms) == 0 {
		return errors.New("at least one query term must be provided via --terms")
	}
	if c.Search.URL == "" {
		return errors.New("--search-url (or BOOKSCOUT_SEARCH_URL) must be provided")
	}
	if err := validateHTTPURL(c.Search.URL); err != nil {
		return fmt.Errorf("invalid --search-url value: %w", err)
	}
	if strings.TrimSpace(c.Search.Index) == "" {
		return errors.New("--index must not be empty")
	}
	if c.Search.Size <= 0 {
		return errors.New("--size must be >= 1")
	}

	// Author validation
	if c.Author.URL == "" {
		c.Author.URL = DefaultAuthorEndpoint
	}
	if err := validateHTTPURL(c.Author.URL); err != nil {
		return fmt.Errorf("invalid --author-url value: %w", err)
	}
	if c.Author.RedisAddr != "" {
		c.Author.Cache = true
	}
	if c.Author.CacheTTL < 0 {
		return errors.New("--cache-ttl must be >= 0")
	}

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		c.Output.ConsoleFormat = "text"
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	for i, st := range c.Output.FilterStatus {
		v := normalizeEnumValue(st)
		if v != "ok" && v != "not_found" && v != "error" {
			return fmt.Errorf("unsupported --filter-status value: %s (must be one of: ok, not_found, error)", st)
		}
		c.Output.FilterStatus[i] = v
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}

	// Runtime validation
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Concurrency > MaxConcurrency {
		return fmt.Errorf("--concurrency must be <= %d", MaxConcurrency)
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	if c.Runtime.HTTPTimeout <= 0 {
		return errors.New("--http-timeout must be > 0")
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: host is required", raw)
	}
	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
