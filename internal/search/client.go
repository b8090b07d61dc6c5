package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"bookscout/internal/record"
)

// Client queries an Elasticsearch-compatible search backend.
type Client struct {
	baseURL string
	index   string
	http    *http.Client
}

type options struct {
	token      string
	verbose    bool
	writer     io.Writer
	timeout    time.Duration
	httpClient *http.Client
}

type Option func(*options)

// WithToken authenticates to the search backend with a static bearer token.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithVerbose logs one line per search request and response (including
// latency) to writer, typically stderr, so stdout output stays clean.
func WithVerbose(enabled bool, writer io.Writer) Option {
	return func(o *options) {
		o.verbose = enabled
		o.writer = writer
	}
}

// WithTimeout sets the network timeout on the constructed HTTP client.
// Ignored when WithHTTPClient supplies a client of its own.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// loggingRoundTripper wraps an underlying transport and emits one line per
// request and response when verbose logging is enabled.
type loggingRoundTripper struct {
	base http.RoundTripper
	w    io.Writer
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	if t.w != nil {
		_, _ = fmt.Fprintf(t.w, "[verbose] search api: %s %s\n", req.Method, req.URL.String())
	}
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start)
	if t.w != nil {
		if err != nil {
			_, _ = fmt.Fprintf(t.w, "[verbose] search api: error after %s: %v\n", dur.Truncate(time.Millisecond), err)
		} else {
			_, _ = fmt.Fprintf(t.w, "[verbose] search api: %d %s (%s)\n", resp.StatusCode, http.StatusText(resp.StatusCode), dur.Truncate(time.Millisecond))
		}
	}
	return resp, err
}

func NewClient(baseURL, index string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("search client: base URL is required")
	}
	if index == "" {
		return nil, fmt.Errorf("search client: index is required")
	}

	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.verbose && o.writer == nil {
		o.writer = os.Stderr
	}

	hc := o.httpClient
	if hc == nil {
		transport := http.DefaultTransport
		if o.verbose {
			transport = &loggingRoundTripper{base: transport, w: o.writer}
		}
		if o.token != "" {
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.token})
			transport = &oauth2.Transport{Source: ts, Base: transport}
		}
		hc = &http.Client{Transport: transport, Timeout: o.timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   index,
		http:    hc,
	}, nil
}

// searchRequest is the _search body: summary must match the term, results
// sorted by score.
type searchRequest struct {
	Query searchQuery `json:"query"`
	Sort  []string    `json:"sort"`
	Size  int         `json:"size"`
}

type searchQuery struct {
	Bool boolQuery `json:"bool"`
}

type boolQuery struct {
	Must []map[string]map[string]string `json:"must"`
}

type searchResponse struct {
	Hits struct {
		Hits []*record.Record `json:"hits"`
	} `json:"hits"`
}

func (c *Client) Search(ctx context.Context, term string, size int) ([]*record.Record, error) {
	if ctx == nil {
		return nil, fmt.Errorf("Search: nil context")
	}
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("Search: nil client (use NewClient)")
	}
	if term == "" {
		return nil, fmt.Errorf("Search: term is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("Search: size must be >= 1, got %d", size)
	}

	body, err := json.Marshal(searchRequest{
		Query: searchQuery{
			Bool: boolQuery{
				Must: []map[string]map[string]string{
					{"match": {record.FieldSummary: term}},
				},
			},
		},
		Sort: []string{"_score"},
		Size: size,
	})
	if err != nil {
		return nil, fmt.Errorf("Search: encode query: %w", err)
	}

	url := fmt.Sprintf("%s/%s/_search", c.baseURL, c.index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Search: query %q: %w", term, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Search: query %q: backend responded %d %s", term, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("Search: decode response for %q: %w", term, err)
	}
	return decoded.Hits.Hits, nil
}
