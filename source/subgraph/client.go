// Package subgraph implements the source.Index boundary over a
// GraphQL endpoint serving the chain's derived event index. The index
// is eventually consistent: a freshly settled purchase can take tens of
// seconds to appear here, which is why callers poll rather than trust a
// single miss.
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/source"
)

// grantQuery fetches permanent grant records for one (content, holder)
// pair. Holder addresses are stored lowercased by the indexer.
const grantQuery = `query Grants($contentId: String!, $holder: String!) {
  permanentGrants(where: { contentId: $contentId, holder: $holder }, first: 1) {
    id
  }
}`

var _ source.Index = (*Client)(nil)

// Client queries the subgraph for permanent grant records.
type Client struct {
	endpoint string
	httpc    *http.Client
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// New creates a subgraph client for the given endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasPermanentGrant implements source.Index.
func (c *Client) HasPermanentGrant(ctx context.Context, viewer content.Address, contentID string) (bool, error) {
	body, err := json.Marshal(map[string]any{
		"query": grantQuery,
		"variables": map[string]string{
			"contentId": contentID,
			"holder":    viewer.Normalize().String(),
		},
	})
	if err != nil {
		return false, fmt.Errorf("subgraph: encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("subgraph: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, source.Unavailable("permanentGrants", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode != http.StatusOK {
		return false, source.Unavailable("permanentGrants", fmt.Errorf("http status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, source.Unavailable("permanentGrants", err)
	}

	var decoded struct {
		Data struct {
			PermanentGrants []struct {
				ID string `json:"id"`
			} `json:"permanentGrants"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return false, source.Unavailable("permanentGrants", err)
	}
	if len(decoded.Errors) > 0 {
		return false, source.Unavailable("permanentGrants", fmt.Errorf("graphql: %s", decoded.Errors[0].Message))
	}

	return len(decoded.Data.PermanentGrants) > 0, nil
}
