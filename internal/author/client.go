package author

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Details is the parsed body of a successful author lookup.
type Details struct {
	Author string `json:"author"`
}

// Caller performs one author lookup per call. Implementations make exactly
// one attempt; retries are a policy decision of the caller and none is made
// here.
type Caller interface {
	Call(ctx context.Context, bookID string) (*Details, error)
}

// Client calls the remote author service over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
	log      zerolog.Logger
}

type options struct {
	httpClient *http.Client
	log        zerolog.Logger
}

type Option func(*options)

// WithHTTPClient overrides the transport. The provided client is expected
// to carry the network timeout; Client adds none of its own.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("author client: endpoint is required")
	}

	o := &options{
		httpClient: http.DefaultClient,
		log:        zerolog.Nop(),
	}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	return &Client{
		endpoint: endpoint,
		http:     o.httpClient,
		log:      o.log,
	}, nil
}

type lookupPayload struct {
	BookID string `json:"book_id"`
}

// Call POSTs {"book_id": <id>} to the endpoint and parses the JSON reply.
// Transport failures surface as *ConnectionError, non-200 statuses as
// *ResponseError; a 404 is the recognized not-found signal (see IsNotFound).
func (c *Client) Call(ctx context.Context, bookID string) (*Details, error) {
	if ctx == nil {
		return nil, fmt.Errorf("Call: nil context")
	}
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("Call: nil client (use NewClient)")
	}
	if bookID == "" {
		return nil, fmt.Errorf("Call: book id is required")
	}

	body, err := json.Marshal(lookupPayload{BookID: bookID})
	if err != nil {
		return nil, fmt.Errorf("Call: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Call: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Str("book_id", bookID).Err(err).Msg("author service unreachable")
		return nil, &ConnectionError{URL: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		reason := reasonPhrase(resp)
		c.log.Debug().Str("book_id", bookID).Int("status", resp.StatusCode).Msg("author service non-200 response")
		return nil, &ResponseError{
			StatusCode: resp.StatusCode,
			Reason:     reason,
			Header:     resp.Header.Clone(),
		}
	}

	var details Details
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("Call: decode response for book %s: %w", bookID, err)
	}
	return &details, nil
}

// reasonPhrase extracts the reason phrase from the response status line,
// keeping whatever the server actually sent. The canonical text for the
// status code is the fallback.
func reasonPhrase(resp *http.Response) string {
	prefix := strconv.Itoa(resp.StatusCode) + " "
	if strings.HasPrefix(resp.Status, prefix) {
		if reason := resp.Status[len(prefix):]; reason != "" {
			return reason
		}
	}
	return http.StatusText(resp.StatusCode)
}
